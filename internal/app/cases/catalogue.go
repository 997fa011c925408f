package cases

import (
	"context"
	"io"
	"sync"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
)

// Catalogue implements ports.CaseSource over a fixed, ordered list of cases.
type Catalogue struct {
	mu    sync.Mutex
	cases []conformance.TestCase
	index int
}

var _ ports.CaseSource = (*Catalogue)(nil)

// NewCatalogue builds a catalogue that yields cases in the given order.
func NewCatalogue(cases []conformance.TestCase) *Catalogue {
	return &Catalogue{cases: cases}
}

// NextCase returns the next case, or io.EOF once every case was handed out.
func (c *Catalogue) NextCase(ctx context.Context) (conformance.TestCase, error) {
	select {
	case <-ctx.Done():
		return conformance.TestCase{}, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index >= len(c.cases) {
		return conformance.TestCase{}, io.EOF
	}

	tc := c.cases[c.index]
	c.index++

	return tc, nil
}

// Len reports how many cases the catalogue holds in total.
func (c *Catalogue) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cases)
}
