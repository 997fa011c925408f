package ports

import (
	"context"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// VerdictPublisher publishes case verdicts to an external system.
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, runID string, verdict conformance.Verdict) error
	Close() error
}
