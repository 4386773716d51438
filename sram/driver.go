package sram

import (
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/sim/hdl"
	"github.com/sarchlab/busvip/sim/hooking"
	"github.com/sarchlab/busvip/sim/id"
	"github.com/sarchlab/busvip/tracing"
)

// Stats counts the accesses of a driver.
type Stats struct {
	Reads  uint64
	Writes uint64
}

// Driver drives the requester side of an SRAM interface.
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

// State returns the phase of the ongoing access.
func (d *Driver) State() State {
	return d.state
}

// Stats returns the access counters.
func (d *Driver) Stats() Stats {
	return d.stats
}

// Busy tells if an access is ongoing.
func (d *Driver) Busy() bool {
	return d.lock.Locked()
}

// Read reads the word at a word address.
func (d *Driver) Read(p *hdl.Process, addr uint64) (uint64, error) {
	rsp, err := d.Transact(p, bus.ReadTxn(addr))
	return rsp.Data, err
}

// Write writes the word at a word address, with all the byte lanes
// enabled.
func (d *Driver) Write(p *hdl.Process, addr, data uint64) error {
	_, err := d.Transact(p, bus.WriteTxn(addr, data))
	return err
}

// Transact runs one access on behalf of the process. Concurrent callers are
// served one at a time in the order they call. The access itself never
// fails; an error is only returned for a byte enable wider than WE.
func (d *Driver) Transact(p *hdl.Process, txn bus.Transaction) (bus.Response, error) {
	we := d.bus.Get(WE)

	if txn.ByteEnable != nil {
		if err := bus.CheckByteEnable(*txn.ByteEnable, we); err != nil {
			return bus.Response{}, err
		}
	}

	d.lock.Acquire(p)
	defer d.lock.Release(p)

	taskID := id.Generate()
	tracing.StartTask(taskID, "", d, "sram", d.what(txn), txn)
	defer tracing.EndTask(taskID, d)

	p.Await(hdl.RisingEdge(d.clk))

	d.state = StateActive
	d.bus.Get(ADDR).Set(txn.Address)
	d.setChipEnable(1)

	if txn.IsWrite() {
		we.Set(d.byteEnable(txn))
		d.bus.Get(WDATA).Set(*txn.WriteData)
	} else {
		we.Set(0)
	}

	tracing.AddTaskStep(taskID, d, "active")

	p.Await(hdl.ReadOnly())

	d.state = StateSettle
	tracing.AddTaskStep(taskID, d, "settle")

	var rsp bus.Response
	if !txn.IsWrite() {
		rsp.Data = d.bus.Get(RDATA).Get()
		rsp.Valid = true
	}

	p.Await(hdl.RisingEdge(d.clk))

	we.Set(0)
	d.setChipEnable(0)
	d.state = StateIdle

	if txn.IsWrite() {
		d.stats.Writes++
	} else {
		d.stats.Reads++
	}

	d.logger.WithFields(log.Fields{
		"txn":  txn.String(),
		"data": rsp.Data,
		"time": float64(p.Now()),
	}).Trace("access done")

	return rsp, nil
}

func (d *Driver) what(txn bus.Transaction) string {
	if txn.IsWrite() {
		return "write"
	}

	return "read"
}

// byteEnable returns the WE value of a write. A missing or empty byte
// enable selects every lane.
func (d *Driver) byteEnable(txn bus.Transaction) uint64 {
	if txn.ByteEnable != nil && *txn.ByteEnable != 0 {
		return *txn.ByteEnable
	}

	return d.bus.Get(WE).Mask()
}

func (d *Driver) setChipEnable(v uint64) {
	if d.caps.Has(CapChipEnable) {
		d.bus.Get(CE).Set(v)
	}
}
