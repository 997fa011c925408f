package kafka

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// CasePublisher enqueues cases for a remote runner that reads them with a
// Consumer.
type CasePublisher struct {
	writer  messageWriter
	batchID func() string
}

// NewCasePublisher constructs a CasePublisher writing to cfg.Topic.
func NewCasePublisher(cfg PublisherConfig) (*CasePublisher, error) {
	writer, err := newWriter(cfg)
	if err != nil {
		return nil, err
	}
	return newCasePublisher(writer), nil
}

func newCasePublisher(writer messageWriter) *CasePublisher {
	return &CasePublisher{writer: writer, batchID: uuid.NewString}
}

// PublishCases writes every case followed by a done marker. The whole batch
// shares one fresh key so it lands on a single partition and a consumer sees
// the cases in order, with the marker last.
func (p *CasePublisher) PublishCases(ctx context.Context, tcs []conformance.TestCase) error {
	payloads := make([][]byte, 0, len(tcs)+1)
	for _, tc := range tcs {
		payload, err := encodeCase(tc)
		if err != nil {
			return fmt.Errorf("case %q: %w", tc.Name, err)
		}
		payloads = append(payloads, payload)
	}
	payloads = append(payloads, encodeDone())

	msgs := keyedBatch([]byte(p.batchID()), payloads...)
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

// Close releases the underlying Kafka writer.
func (p *CasePublisher) Close() error {
	return p.writer.Close()
}
