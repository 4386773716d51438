// Package amba holds the definitions shared by the AMBA bus protocols.
package amba

import "fmt"

// Mode tells if an access is privileged.
type Mode uint8

// The access modes.
const (
	ModeNormal     Mode = 0
	ModePrivileged Mode = 1 << 0
)

func (m Mode) String() string {
	if m == ModePrivileged {
		return "PRIVILEGED"
	}

	return "NORMAL"
}

// Security tells if an access is secure.
type Security uint8

// The security levels.
const (
	SecurityNonSecure Security = 0
	SecuritySecure    Security = 1 << 1
)

func (s Security) String() string {
	if s == SecuritySecure {
		return "SECURE"
	}

	return "NON_SECURE"
}

// TransactionType tells if an access fetches instructions or moves data.
type TransactionType uint8

// The transaction types.
const (
	TransactionInstruction TransactionType = 0
	TransactionData        TransactionType = 1 << 2
)

func (t TransactionType) String() string {
	if t == TransactionData {
		return "DATA"
	}

	return "INSTRUCTION"
}

const protMask = 0x7

// Prot is the protection type of an access, as carried by PPROT.
type Prot uint8

// NewProt composes a protection type.
func NewProt(m Mode, s Security, t TransactionType) Prot {
	return Prot(0).WithMode(m).WithSecurity(s).WithTransactionType(t)
}

// ProtFromBits creates a protection type from the value of PPROT. Bits
// above the lowest three are dropped.
func ProtFromBits(bits uint64) Prot {
	return Prot(bits & protMask)
}

// Bits returns the value to drive on PPROT.
func (p Prot) Bits() uint64 {
	return uint64(p)
}

// Mode returns the access mode.
func (p Prot) Mode() Mode {
	return Mode(p) & ModePrivileged
}

// Security returns the security level.
func (p Prot) Security() Security {
	return Security(p) & SecuritySecure
}

// TransactionType returns the transaction type.
func (p Prot) TransactionType() TransactionType {
	return TransactionType(p) & TransactionData
}

// WithMode returns a copy with the access mode changed.
func (p Prot) WithMode(m Mode) Prot {
	return p.with(uint8(ModePrivileged), m == ModePrivileged)
}

// WithSecurity returns a copy with the security level changed.
func (p Prot) WithSecurity(s Security) Prot {
	return p.with(uint8(SecuritySecure), s == SecuritySecure)
}

// WithTransactionType returns a copy with the transaction type changed.
func (p Prot) WithTransactionType(t TransactionType) Prot {
	return p.with(uint8(TransactionData), t == TransactionData)
}

func (p Prot) with(bit uint8, set bool) Prot {
	if set {
		return p | Prot(bit)
	}

	return p &^ Prot(bit)
}

func (p Prot) String() string {
	return fmt.Sprintf("Prot(mode=%s, security=%s, type=%s, bits=%#x)",
		p.Mode(), p.Security(), p.TransactionType(), uint8(p))
}
