package amba

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Prot", func() {
	It("should default to a normal non-secure instruction access", func() {
		var p Prot

		Expect(p.Mode()).To(Equal(ModeNormal))
		Expect(p.Security()).To(Equal(SecurityNonSecure))
		Expect(p.TransactionType()).To(Equal(TransactionInstruction))
		Expect(p.Bits()).To(Equal(uint64(0)))
	})

	It("should compose the flags", func() {
		p := NewProt(ModePrivileged, SecuritySecure, TransactionData)

		Expect(p.Bits()).To(Equal(uint64(0x7)))
		Expect(p.WithSecurity(SecurityNonSecure).Bits()).To(Equal(uint64(0x5)))
		Expect(p.Bits()).To(Equal(uint64(0x7)))
	})

	It("should set each flag independently", func() {
		p := Prot(0).WithTransactionType(TransactionData)
		Expect(p.Bits()).To(Equal(uint64(0x4)))

		p = p.WithMode(ModePrivileged)
		Expect(p.Bits()).To(Equal(uint64(0x5)))

		p = p.WithTransactionType(TransactionInstruction)
		Expect(p.Bits()).To(Equal(uint64(0x1)))
		Expect(p.Mode()).To(Equal(ModePrivileged))
	})

	It("should round trip through the bus value", func() {
		for bits := uint64(0); bits < 8; bits++ {
			Expect(ProtFromBits(bits).Bits()).To(Equal(bits))
		}

		Expect(ProtFromBits(0xfa).Bits()).To(Equal(uint64(0x2)))
	})

	It("should print the flags", func() {
		p := NewProt(ModePrivileged, SecurityNonSecure, TransactionData)

		Expect(p.String()).To(Equal(
			"Prot(mode=PRIVILEGED, security=NON_SECURE, type=DATA, bits=0x5)"))
	})
})
