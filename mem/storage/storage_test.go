package storage

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	It("should read and write in a single unit", func() {
		s := New(4096)
		Expect(s.Write(0, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := s.Read(0, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2}))

		res, err = s.Read(1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{2, 3}))
	})

	It("should read and write across units", func() {
		s := New(8192)
		Expect(s.Write(4094, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := s.Read(4094, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should read zeros from untouched units", func() {
		s := New(1 << 20)

		res, err := s.Read(0x8000, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{0, 0, 0}))
	})

	It("should return an error if accessing over the capacity", func() {
		s := New(4096)

		Expect(s.Write(4095, []byte{1, 2})).To(MatchError(ErrOutOfRange))

		_, err := s.Read(4096, 1)
		Expect(err).To(MatchError(ErrOutOfRange))
	})

	It("should read and write little-endian words", func() {
		s := New(64)

		Expect(s.WriteWord(8, 4, 0xdeadbeef, 0xf)).To(Succeed())

		raw, _ := s.Read(8, 4)
		Expect(raw).To(Equal([]byte{0xef, 0xbe, 0xad, 0xde}))

		w, err := s.ReadWord(8, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(uint64(0xdeadbeef)))
	})

	It("should only write the enabled byte lanes", func() {
		s := New(64)
		Expect(s.WriteWord(0, 4, 0x11223344, 0xf)).To(Succeed())

		Expect(s.WriteWord(0, 4, 0xaabbccdd, 0x5)).To(Succeed())

		w, _ := s.ReadWord(0, 4)
		Expect(w).To(Equal(uint64(0x11bb33dd)))
	})

	It("should panic on an invalid word size", func() {
		s := New(64)
		Expect(func() { _, _ = s.ReadWord(0, 9) }).To(Panic())
	})
})
