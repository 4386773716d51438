// Package sram drives and models a synchronous SRAM interface.
//
// The address, write enable and write data are registered by the memory at
// the rising edge; read data follows the address combinationally. The
// optional chip enable selects the memory.
package sram

import "fmt"

// Mandatory signal roles.
const (
	ADDR  = "ADDR"
	WE    = "WE"
	WDATA = "WDATA"
	RDATA = "RDATA"
)

// Optional signal roles.
const (
	CE = "CE"
)

// MandatorySignals are the roles that every SRAM interface has.
var MandatorySignals = []string{ADDR, WE, WDATA, RDATA}

// OptionalSignals are the roles an SRAM interface may have.
var OptionalSignals = []string{CE}

// Capabilities tells which optional signals an interface has.
type Capabilities uint8

// The optional features.
const (
	CapChipEnable Capabilities = 1 << iota
)

// Has tells if all the given features are present.
func (c Capabilities) Has(f Capabilities) bool {
	return c&f == f
}

func (c Capabilities) String() string {
	if c.Has(CapChipEnable) {
		return "{CE}"
	}

	return "{}"
}

// State is the phase of the access a driver is in.
type State int

// The driver states.
const (
	StateIdle State = iota
	StateActive
	StateSettle
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateSettle:
		return "SETTLE"
	}

	return fmt.Sprintf("State(%d)", int(s))
}
