package kafka

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dolev-goaz/language-compiler/internal/app/cases"
	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
	"github.com/dolev-goaz/language-compiler/internal/ports"
)

const defaultGroupID = "compcheck"

// Config describes how to connect to a Kafka cluster for consuming cases.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
	// ProgramsDir resolves the file field of consumed records.
	ProgramsDir string
}

func (cfg Config) readerConfig() (kafkago.ReaderConfig, error) {
	if err := checkEndpoint(cfg.Brokers, cfg.Topic); err != nil {
		return kafkago.ReaderConfig{}, err
	}
	return kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cmp.Or(cfg.GroupID, defaultGroupID),
		MinBytes: cmp.Or(cfg.MinBytes, 1),
		MaxBytes: cmp.Or(cfg.MaxBytes, 10<<20),
		MaxWait:  cmp.Or(cfg.MaxWait, time.Second),
	}, nil
}

var _ ports.CaseSource = (*Consumer)(nil)

// Consumer reads a batch of cases, terminated by a done marker, from a topic.
// Case names must be unique within a batch.
type Consumer struct {
	reader      messageReader
	programsDir string
	// seen maps each case name of the current batch to its offset.
	seen map[string]int64
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// NewConsumer joins cfg.GroupID on cfg.Topic.
func NewConsumer(cfg Config) (*Consumer, error) {
	readerConfig, err := cfg.readerConfig()
	if err != nil {
		return nil, err
	}
	return newConsumer(kafkago.NewReader(readerConfig), cfg.ProgramsDir), nil
}

func newConsumer(reader messageReader, programsDir string) *Consumer {
	return &Consumer{reader: reader, programsDir: programsDir, seen: make(map[string]int64)}
}

// NextCase blocks until the next case message is available or ctx is
// cancelled. A done message ends the batch with io.EOF. A message that is not
// a valid case, or that repeats a name already seen in the batch, yields a
// *conformance.LoadError.
func (c *Consumer) NextCase(ctx context.Context) (conformance.TestCase, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return conformance.TestCase{}, err
	}

	tc, err := decodeCaseMessage(msg, c.programsDir)
	if errors.Is(err, io.EOF) {
		clear(c.seen)
		return conformance.TestCase{}, io.EOF
	}
	if err != nil {
		loadErr := cases.RecordError(int(msg.Offset), err)
		loadErr.Path = messageOrigin(msg)
		return conformance.TestCase{}, loadErr
	}

	if first, dup := c.seen[tc.Name]; dup {
		return conformance.TestCase{}, &conformance.LoadError{
			Path:  messageOrigin(msg),
			Index: int(msg.Offset),
			Field: "name",
			Err:   fmt.Errorf("duplicate case name %q (first sent at offset %d)", tc.Name, first),
		}
	}
	c.seen[tc.Name] = msg.Offset
	return tc, nil
}

func messageOrigin(msg kafkago.Message) string {
	return fmt.Sprintf("kafka:%s/%d", msg.Topic, msg.Partition)
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
