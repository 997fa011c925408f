package ports

import (
	"context"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// CaseSource yields test cases in order. It returns io.EOF once exhausted.
type CaseSource interface {
	NextCase(ctx context.Context) (conformance.TestCase, error)
}
