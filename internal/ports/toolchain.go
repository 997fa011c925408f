package ports

import (
	"context"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// Program is a successfully compiled artifact ready to be executed.
type Program interface {
	Run(ctx context.Context) (*conformance.RunResult, error)
	Close() error
}

// Toolchain drives the compiler under test.
//
// Compile returns a Program when compilation succeeded, or a non-nil build
// result with CompileSucceeded=false when the compiler rejected the source.
// An error means neither could be determined, typically a
// *conformance.SpawnError.
type Toolchain interface {
	Compile(ctx context.Context, tc conformance.TestCase) (Program, *conformance.RunResult, error)
	// Isolated reports whether concurrent cases get distinct artifact paths.
	Isolated() bool
	Close() error
}
