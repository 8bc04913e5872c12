// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Callers treat identifiers as opaque strings.
package idgen

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// NewFunc returns a new globally unique identifier. Override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }

// Generator produces identifiers.
type Generator interface {
	NewID() string
}

// Default generator backed by NewFunc.
type Default struct{}

// NewID implements Generator.
func (Default) NewID() string { return New() }

// OrDefault returns g, or the UUID generator when g is nil.
func OrDefault(g Generator) Generator {
	if g == nil {
		return Default{}
	}
	return g
}

// Sequence returns ids prefix-1, prefix-2, ...
type Sequence struct {
	Prefix string

	mu sync.Mutex
	n  int
}

// NewID implements Generator.
func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.Prefix + "-" + strconv.Itoa(s.n)
}
