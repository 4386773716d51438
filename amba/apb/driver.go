package apb

import (
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/sim/hdl"
	"github.com/sarchlab/busvip/sim/hooking"
	"github.com/sarchlab/busvip/sim/id"
	"github.com/sarchlab/busvip/tracing"
)

// Response is the outcome of a successful transfer.
type Response struct {
	bus.Response

	// ReadUser is sampled from PRUSER on reads, if present.
	ReadUser uint64

	// ResponseUser is sampled from PBUSER, if present.
	ResponseUser uint64
}

// Stats counts the transfers of a driver.
type Stats struct {
	Reads      uint64
	Writes     uint64
	Errors     uint64
	WaitStates uint64
}

// Driver drives the requester side of an APB interface.
type Driver struct {
	*hooking.HookableBase

	name   string
	bus    *bus.Bus
	clk    *hdl.Signal
	lock   *hdl.Lock
	caps   Capabilities
	logger *log.Entry

	state State
	stats Stats
}

// Name returns the name of the driver.
func (d *Driver) Name() string {
	return d.name
}

// Bus returns the bound signals.
func (d *Driver) Bus() *bus.Bus {
	return d.bus
}

// Capabilities returns the optional signals the interface has.
func (d *Driver) Capabilities() Capabilities {
	return d.caps
}

// State returns the phase of the ongoing transfer.
func (d *Driver) State() State {
	return d.state
}

// Stats returns the transfer counters.
func (d *Driver) Stats() Stats {
	return d.stats
}

// Busy tells if a transfer is ongoing.
func (d *Driver) Busy() bool {
	return d.lock.Locked()
}

func (d *Driver) sig(role string) *hdl.Signal {
	return d.bus.Get(role)
}

func (d *Driver) initSignals() {
	for _, role := range []string{PADDR, PWDATA, PWRITE, PSEL, PENABLE} {
		d.sig(role).SetImmediate(0)
	}

	for _, role := range []string{PAUSER, PWUSER, PWAKEUP, PPROT, PSTRB} {
		if s := d.sig(role); s != nil {
			s.SetImmediate(0)
		}
	}
}

// Read reads a word.
func (d *Driver) Read(p *hdl.Process, addr uint64, opts ...Option) (uint64, error) {
	rsp, err := d.Transact(p, bus.ReadTxn(addr), opts...)
	return rsp.Data, err
}

// Write writes a word.
func (d *Driver) Write(p *hdl.Process, addr, data uint64, opts ...Option) error {
	_, err := d.Transact(p, bus.WriteTxn(addr, data), opts...)
	return err
}

// Transact runs one transfer on behalf of the process. Concurrent callers
// are served one at a time in the order they call. It returns a
// *SlaveError if the completer signals PSLVERR.
func (d *Driver) Transact(
	p *hdl.Process,
	txn bus.Transaction,
	opts ...Option,
) (Response, error) {
	o := collectOptions(opts)
	if err := d.checkOptions(txn, o); err != nil {
		return Response{}, err
	}

	d.lock.Acquire(p)
	defer d.lock.Release(p)

	taskID := id.Generate()
	tracing.StartTask(taskID, "", d, "apb", d.what(txn), txn)
	defer tracing.EndTask(taskID, d)

	defer d.driveIdle()

	p.Await(hdl.RisingEdge(d.clk))
	d.driveSetup(txn, o)
	tracing.AddTaskStep(taskID, d, "setup")

	p.Await(hdl.RisingEdge(d.clk))
	d.state = StateAccess
	d.sig(PENABLE).Set(1)
	tracing.AddTaskStep(taskID, d, "access")

	for {
		p.Await(hdl.RisingEdge(d.clk))
		if d.sig(PREADY).IsHigh() {
			break
		}

		d.stats.WaitStates++
		tracing.AddTaskStep(taskID, d, "wait")
	}

	tracing.AddTaskStep(taskID, d, "ready")

	if d.sig(PSLVERR).IsHigh() {
		d.stats.Errors++
		err := d.slaveError(txn)
		d.logger.WithError(err).Warn("transfer failed")

		return Response{}, err
	}

	rsp := d.sample(txn)

	p.Await(hdl.RisingEdge(d.clk))

	d.count(txn)
	d.logger.WithFields(log.Fields{
		"txn":  txn.String(),
		"data": rsp.Data,
		"time": float64(p.Now()),
	}).Trace("transfer done")

	return rsp, nil
}

func (d *Driver) checkOptions(txn bus.Transaction, o transferOptions) error {
	if o.strobe != nil && d.caps.Has(CapStrobe) {
		return bus.CheckByteEnable(*o.strobe, d.sig(PSTRB))
	}

	if txn.ByteEnable != nil && d.caps.Has(CapStrobe) {
		return bus.CheckByteEnable(*txn.ByteEnable, d.sig(PSTRB))
	}

	return nil
}

func (d *Driver) what(txn bus.Transaction) string {
	if txn.IsWrite() {
		return "write"
	}

	return "read"
}

func (d *Driver) driveSetup(txn bus.Transaction, o transferOptions) {
	d.state = StateSetup

	d.sig(PADDR).Set(txn.Address)
	d.sig(PSEL).Set(1)
	d.sig(PENABLE).Set(0)

	if txn.IsWrite() {
		d.sig(PWDATA).Set(*txn.WriteData)
		d.sig(PWRITE).Set(1)
	} else {
		d.sig(PWRITE).Set(0)
	}

	d.driveSidebands(txn, o)
}

func (d *Driver) driveSidebands(txn bus.Transaction, o transferOptions) {
	if d.caps.Has(CapProt) {
		d.sig(PPROT).Set(o.prot.Bits())
	}

	if d.caps.Has(CapStrobe) {
		d.sig(PSTRB).Set(d.strobe(txn, o))
	}

	if d.caps.Has(CapAddressUser) {
		d.sig(PAUSER).Set(o.addrUser)
	}

	if d.caps.Has(CapWriteUser) && txn.IsWrite() {
		d.sig(PWUSER).Set(o.writeUser)
	}

	if d.caps.Has(CapWakeup) {
		d.sig(PWAKEUP).Set(1)
	}
}

// strobe returns the PSTRB value. Reads never enable a lane.
func (d *Driver) strobe(txn bus.Transaction, o transferOptions) uint64 {
	switch {
	case !txn.IsWrite():
		return 0
	case o.strobe != nil:
		return *o.strobe
	case txn.ByteEnable != nil:
		return *txn.ByteEnable
	}

	return d.sig(PSTRB).Mask()
}

func (d *Driver) sample(txn bus.Transaction) Response {
	var rsp Response

	if !txn.IsWrite() {
		rsp.Data = d.sig(PRDATA).Get()
		rsp.Valid = true

		if d.caps.Has(CapReadUser) {
			rsp.ReadUser = d.sig(PRUSER).Get()
		}
	}

	if d.caps.Has(CapResponseUser) {
		rsp.ResponseUser = d.sig(PBUSER).Get()
	}

	return rsp
}

func (d *Driver) slaveError(txn bus.Transaction) *SlaveError {
	err := &SlaveError{Address: txn.Address, Write: txn.IsWrite()}
	if err.Write {
		err.WriteData = *txn.WriteData
	}

	d.count(txn)

	return err
}

func (d *Driver) count(txn bus.Transaction) {
	if txn.IsWrite() {
		d.stats.Writes++
	} else {
		d.stats.Reads++
	}
}

// driveIdle leaves the address and data lines at their last value.
func (d *Driver) driveIdle() {
	d.state = StateIdle

	if d.sig(PSEL).Kernel().Finished() {
		return
	}

	d.sig(PSEL).Set(0)
	d.sig(PENABLE).Set(0)

	if d.caps.Has(CapWakeup) {
		d.sig(PWAKEUP).Set(0)
	}
}
