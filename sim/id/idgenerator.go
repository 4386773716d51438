// Package id generates identifiers for transactions and trace records.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	Generate() string
}

var (
	generatorLock sync.Mutex
	generator     IDGenerator = NewSequentialIDGenerator()
)

// Generate returns a new ID from the generator used in the current
// simulation.
func Generate() string {
	generatorLock.Lock()
	g := generator
	generatorLock.Unlock()

	return g.Generate()
}

// UseGenerator replaces the generator used by Generate.
func UseGenerator(g IDGenerator) {
	generatorLock.Lock()
	generator = g
	generatorLock.Unlock()
}

// NewSequentialIDGenerator returns a generator that produces 1, 2, 3, ...
// Sequential IDs make traces of the same seed reproducible.
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(idNumber, 10)
}

// NewXIDGenerator returns a generator producing globally unique IDs. Use it
// when traces from several runs are merged into one database.
func NewXIDGenerator() IDGenerator {
	return xidGenerator{}
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
