// Package runtime selects the toolchain backend that drives the compiler
// under test.
package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
	"github.com/dolev-goaz/language-compiler/internal/runtime/docker"
	"github.com/dolev-goaz/language-compiler/internal/runtime/local"
)

// Backend names a toolchain implementation.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendDocker Backend = "docker"
)

// Settings is the backend-independent toolchain configuration. Backends
// ignore the fields that do not apply to them.
type Settings struct {
	CompilerPath string
	Subcommand   string
	ArtifactName string
	// Workdir is a host directory shared by all cases (local only).
	Workdir string
	// Image, RunImage and ContainerWorkdir configure the docker backend.
	Image            string
	RunImage         string
	ContainerWorkdir string
	TimeLimit        time.Duration
	MemoryLimitBytes int64
	Logger           *zap.Logger
}

func (s Settings) limits() conformance.RunLimits {
	return conformance.RunLimits{TimeLimit: s.TimeLimit, MemoryLimitBytes: s.MemoryLimitBytes}.Normalize()
}

// Factory builds a toolchain from settings.
type Factory func(Settings) (ports.Toolchain, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[Backend]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Backend]Factory)}
}

// DefaultRegistry returns a registry with the local and docker backends.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	_ = reg.Register(BackendLocal, newLocal)
	_ = reg.Register(BackendDocker, newDocker)
	return reg
}

// Register adds a factory under name.
func (r *Registry) Register(name Backend, factory Factory) error {
	if name == "" {
		return fmt.Errorf("backend name must be provided")
	}
	if factory == nil {
		return fmt.Errorf("backend %q: factory cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("duplicate backend %q", name)
	}
	r.factories[name] = factory
	return nil
}

// Open builds the toolchain registered under name.
func (r *Registry) Open(name Backend, settings Settings) (ports.Toolchain, error) {
	r.mu.RLock()
	factory, ok := r.factories[Backend(strings.ToLower(string(name)))]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(r.names(), ", "))
	}

	toolchain, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", name, err)
	}
	return toolchain, nil
}

// Names lists the registered backends in sorted order.
func (r *Registry) Names() []Backend {
	names := r.names()
	out := make([]Backend, len(names))
	for i, name := range names {
		out[i] = Backend(name)
	}
	return out
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

func newLocal(s Settings) (ports.Toolchain, error) {
	return local.New(local.Config{
		CompilerPath: s.CompilerPath,
		Subcommand:   s.Subcommand,
		Workdir:      s.Workdir,
		ArtifactName: s.ArtifactName,
		Limits:       s.limits(),
		Logger:       s.Logger,
	})
}

func newDocker(s Settings) (ports.Toolchain, error) {
	return docker.New(docker.Config{
		CompilerPath: s.CompilerPath,
		Subcommand:   s.Subcommand,
		ArtifactName: s.ArtifactName,
		Image:        s.Image,
		RunImage:     s.RunImage,
		Workdir:      s.ContainerWorkdir,
		Limits:       s.limits(),
		Logger:       s.Logger,
	})
}
