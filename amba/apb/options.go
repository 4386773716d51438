package apb

import (
	"github.com/sarchlab/busvip/amba"
)

// An Option sets the optional sidebands of a transfer. Sidebands whose
// signal is absent are ignored.
type Option func(o *transferOptions)

type transferOptions struct {
	prot      amba.Prot
	strobe    *uint64
	addrUser  uint64
	writeUser uint64
}

// WithProt drives PPROT.
func WithProt(p amba.Prot) Option {
	return func(o *transferOptions) {
		o.prot = p
	}
}

// WithStrobe drives PSTRB on writes. Without it every byte lane is
// enabled.
func WithStrobe(mask uint64) Option {
	return func(o *transferOptions) {
		o.strobe = &mask
	}
}

// WithAddressUser drives PAUSER.
func WithAddressUser(v uint64) Option {
	return func(o *transferOptions) {
		o.addrUser = v
	}
}

// WithWriteUser drives PWUSER on writes.
func WithWriteUser(v uint64) Option {
	return func(o *transferOptions) {
		o.writeUser = v
	}
}

func collectOptions(opts []Option) transferOptions {
	var o transferOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
