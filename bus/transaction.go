package bus

import (
	"errors"
	"fmt"

	"github.com/sarchlab/busvip/sim/hdl"
)

// A Transaction is a single-beat bus access. It is a write if it carries
// write data and a read otherwise.
type Transaction struct {
	Address    uint64
	WriteData  *uint64
	ByteEnable *uint64
}

// ReadTxn creates a read transaction.
func ReadTxn(addr uint64) Transaction {
	return Transaction{Address: addr}
}

// WriteTxn creates a write transaction.
func WriteTxn(addr, data uint64) Transaction {
	return Transaction{Address: addr, WriteData: &data}
}

// WithByteEnable returns a copy of the transaction with a byte enable mask.
func (t Transaction) WithByteEnable(mask uint64) Transaction {
	t.ByteEnable = &mask
	return t
}

// IsWrite tells if the transaction carries write data.
func (t Transaction) IsWrite() bool {
	return t.WriteData != nil
}

func (t Transaction) String() string {
	if !t.IsWrite() {
		return fmt.Sprintf("read %#x", t.Address)
	}

	return fmt.Sprintf("write %#x <- %#x", t.Address, *t.WriteData)
}

// A Response is the outcome of a transaction. Data is only valid for reads.
type Response struct {
	Data  uint64
	Valid bool
}

// ErrByteEnableTooWide is returned when a byte enable mask has bits beyond
// the width of the signal that carries it.
var ErrByteEnableTooWide = errors.New("bus: byte enable wider than its signal")

// CheckByteEnable verifies that the mask fits in the signal.
func CheckByteEnable(mask uint64, s *hdl.Signal) error {
	if mask&^s.Mask() != 0 {
		return fmt.Errorf("%w: mask %#x, signal %s has %d bits",
			ErrByteEnableTooWide, mask, s.Name(), s.Width())
	}

	return nil
}
