package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
)

var _ ports.VerdictPublisher = (*Publisher)(nil)

var errNoWriter = errors.New("publisher is not initialized")

// Publisher streams verdicts to a topic, one message per case keyed by the
// case name.
type Publisher struct {
	writer messageWriter
}

// NewPublisher connects a Publisher to cfg.Topic.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	writer, err := newWriter(cfg)
	if err != nil {
		return nil, err
	}
	return newPublisher(writer), nil
}

func newPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// PublishVerdict writes verdict as part of run runID.
func (p *Publisher) PublishVerdict(ctx context.Context, runID string, verdict conformance.Verdict) error {
	if p.writer == nil {
		return errNoWriter
	}

	payload, err := encodeVerdict(runID, verdict)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, keyedBatch([]byte(verdict.CaseName), payload)...); err != nil {
		return fmt.Errorf("write message for case %q: %w", verdict.CaseName, err)
	}
	return nil
}

// Close flushes and releases the writer. A zero Publisher closes cleanly.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
