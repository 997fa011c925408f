package local

import (
	"go.uber.org/zap"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

const (
	defaultSubcommand   = "compile"
	defaultArtifactName = "output"
)

// Config describes how to drive a compiler installed on the host.
type Config struct {
	// CompilerPath is the compiler executable. Paths containing a separator
	// are made absolute; bare names are looked up on PATH.
	CompilerPath string
	// Subcommand selects compile mode. Defaults to "compile".
	Subcommand string
	// Workdir is the directory the compiler runs in and writes its artifact
	// to. When empty every case gets a fresh temporary directory, which makes
	// concurrent cases safe.
	Workdir string
	// ArtifactName is the file the compiler produces. Defaults to "output".
	ArtifactName string
	Limits       conformance.RunLimits
	Logger       *zap.Logger
}
