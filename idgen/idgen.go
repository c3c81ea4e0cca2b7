// Package idgen provides the request ID generators used by the bus and the
// devices to label traced requests.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// NewSequential returns a generator whose first emitted ID is "1". The IDs
// are deterministic across runs.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewSequentialWithPrefix returns a sequential generator that prepends
// prefix and a dot to every ID.
func NewSequentialWithPrefix(prefix string) Generator {
	return &sequentialGenerator{prefix: prefix + "."}
}

type sequentialGenerator struct {
	prefix string
	next   uint64
}

func (g *sequentialGenerator) Generate() string {
	n := atomic.AddUint64(&g.next, 1)
	return g.prefix + strconv.FormatUint(n, 10)
}

// NewXID returns a generator backed by xid. The IDs are globally unique but
// not deterministic.
func NewXID() Generator {
	return xidGenerator{}
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
