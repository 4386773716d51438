// Package storage provides the sparse byte storage that backs the memory
// models.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an access touches bytes beyond the
// capacity of a Storage.
var ErrOutOfRange = errors.New("storage: access beyond capacity")

// DefaultUnitSize is the size of the units a Storage allocates.
const DefaultUnitSize = 4096

// A Storage keeps the content of a memory.
//
// The storage is managed in units, similar to pages. Units that are never
// touched by Read or Write are never allocated and read as zeros.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// New creates a storage with the given capacity in bytes.
func New(capacity uint64) *Storage {
	return &Storage{
		unitSize: DefaultUnitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) checkRange(addr, n uint64) error {
	if addr >= s.capacity || n > s.capacity-addr {
		return fmt.Errorf("%w: addr %#x, len %d, capacity %d",
			ErrOutOfRange, addr, n, s.capacity)
	}

	return nil
}

func (s *Storage) unit(addr uint64, create bool) []byte {
	base := addr - addr%s.unitSize

	u, ok := s.data[base]
	if !ok && create {
		u = make([]byte, s.unitSize)
		s.data[base] = u
	}

	return u
}

// Read returns n bytes starting from addr.
func (s *Storage) Read(addr, n uint64) ([]byte, error) {
	if err := s.checkRange(addr, n); err != nil {
		return nil, err
	}

	res := make([]byte, n)
	done := uint64(0)

	for done < n {
		curr := addr + done
		offset := curr % s.unitSize
		chunk := min(s.unitSize-offset, n-done)

		if u := s.unit(curr, false); u != nil {
			copy(res[done:done+chunk], u[offset:offset+chunk])
		}

		done += chunk
	}

	return res, nil
}

// Write stores data starting from addr.
func (s *Storage) Write(addr uint64, data []byte) error {
	n := uint64(len(data))
	if err := s.checkRange(addr, n); err != nil {
		return err
	}

	done := uint64(0)

	for done < n {
		curr := addr + done
		offset := curr % s.unitSize
		chunk := min(s.unitSize-offset, n-done)

		u := s.unit(curr, true)
		copy(u[offset:offset+chunk], data[done:done+chunk])

		done += chunk
	}

	return nil
}

// ReadWord reads a little-endian word of size bytes, at most 8.
func (s *Storage) ReadWord(addr uint64, size int) (uint64, error) {
	mustBeValidWordSize(size)

	buf, err := s.Read(addr, uint64(size))
	if err != nil {
		return 0, err
	}

	var word [8]byte
	copy(word[:], buf)

	return binary.LittleEndian.Uint64(word[:]), nil
}

// WriteWord writes the bytes of a little-endian word of size bytes whose
// bit is set in lanes. Bit i of lanes enables byte i.
func (s *Storage) WriteWord(addr uint64, size int, value uint64, lanes uint64) error {
	mustBeValidWordSize(size)

	old, err := s.Read(addr, uint64(size))
	if err != nil {
		return err
	}

	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], value)

	for i := 0; i < size; i++ {
		if lanes&(1<<uint(i)) != 0 {
			old[i] = word[i]
		}
	}

	return s.Write(addr, old)
}

func mustBeValidWordSize(size int) {
	if size < 1 || size > 8 {
		panic(fmt.Sprintf("storage: invalid word size %d", size))
	}
}
