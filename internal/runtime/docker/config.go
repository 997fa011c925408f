package docker

import (
	"go.uber.org/zap"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

const (
	defaultWorkdir      = "/workspace"
	defaultSubcommand   = "compile"
	defaultArtifactName = "output"
	compilerFilename    = "compiler"
)

// Config describes how to run the compiler under test inside Docker containers.
type Config struct {
	// CompilerPath is the compiler executable on the host. It is copied into
	// every build container.
	CompilerPath string
	Subcommand   string
	ArtifactName string
	// Image must provide whatever the compiler shells out to (assembler,
	// linker). RunImage defaults to Image.
	Image    string
	RunImage string
	Workdir  string
	Limits   conformance.RunLimits
	Logger   *zap.Logger
}
