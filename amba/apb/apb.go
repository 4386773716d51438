// Package apb drives and models the AMBA APB peripheral bus.
//
// A Driver plays the requester side. It runs one transfer at a time: the
// setup phase, the access phase, zero or more wait states until the
// completer raises PREADY, and a final edge after which the bus is idle.
// A Completer plays the other side, backed by a storage.
package apb

import (
	"errors"
	"fmt"
	"strings"
)

// Mandatory signal roles.
const (
	PADDR   = "PADDR"
	PWDATA  = "PWDATA"
	PWRITE  = "PWRITE"
	PRDATA  = "PRDATA"
	PSEL    = "PSEL"
	PENABLE = "PENABLE"
	PREADY  = "PREADY"
	PSLVERR = "PSLVERR"
)

// Optional signal roles.
const (
	PAUSER  = "PAUSER"
	PWUSER  = "PWUSER"
	PRUSER  = "PRUSER"
	PBUSER  = "PBUSER"
	PWAKEUP = "PWAKEUP"
	PPROT   = "PPROT"
	PSTRB   = "PSTRB"
)

// MandatorySignals are the roles that every APB interface has.
var MandatorySignals = []string{
	PADDR, PWDATA, PWRITE, PRDATA, PSEL, PENABLE, PREADY, PSLVERR,
}

// OptionalSignals are the roles an APB interface may have.
var OptionalSignals = []string{
	PAUSER, PWUSER, PRUSER, PBUSER, PWAKEUP, PPROT, PSTRB,
}

// Capabilities tells which optional signals an interface has.
type Capabilities uint8

// The optional features.
const (
	CapAddressUser Capabilities = 1 << iota
	CapWriteUser
	CapReadUser
	CapResponseUser
	CapWakeup
	CapProt
	CapStrobe
)

var capabilityRoles = []struct {
	c    Capabilities
	role string
}{
	{CapAddressUser, PAUSER},
	{CapWriteUser, PWUSER},
	{CapReadUser, PRUSER},
	{CapResponseUser, PBUSER},
	{CapWakeup, PWAKEUP},
	{CapProt, PPROT},
	{CapStrobe, PSTRB},
}

// Has tells if all the given features are present.
func (c Capabilities) Has(f Capabilities) bool {
	return c&f == f
}

func (c Capabilities) String() string {
	names := make([]string, 0, len(capabilityRoles))

	for _, cr := range capabilityRoles {
		if c.Has(cr.c) {
			names = append(names, cr.role)
		}
	}

	return "{" + strings.Join(names, ",") + "}"
}

// State is the phase of the transfer a driver is in.
type State int

// The driver states.
const (
	StateIdle State = iota
	StateSetup
	StateAccess
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSetup:
		return "SETUP"
	case StateAccess:
		return "ACCESS"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// ErrSlave matches every *SlaveError with errors.Is.
var ErrSlave = errors.New("apb: slave error")

// SlaveError is returned when the completer signals PSLVERR.
type SlaveError struct {
	Address   uint64
	WriteData uint64
	Write     bool
}

func (e *SlaveError) Error() string {
	msg := fmt.Sprintf("apb: slave error, addr: %#x", e.Address)
	if e.Write {
		msg += fmt.Sprintf(", wdata: %#x", e.WriteData)
	}

	return msg
}

// Is makes errors.Is(err, ErrSlave) true.
func (e *SlaveError) Is(target error) bool {
	return target == ErrSlave
}
