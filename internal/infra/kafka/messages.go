package kafka

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dolev-goaz/language-compiler/internal/app/cases"
	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

const (
	messageTypeCase = "case"
	messageTypeDone = "done"
)

// caseEnvelope is a case-list record plus a message type. A missing type
// means "case", so plain records from the case list are valid messages.
type caseEnvelope struct {
	Type string `json:"type,omitempty"`
	cases.Record
}

type verdictEnvelope struct {
	RunID              string    `json:"run_id"`
	Case               string    `json:"case"`
	File               string    `json:"file,omitempty"`
	Passed             bool      `json:"passed"`
	Reason             string    `json:"reason,omitempty"`
	ShouldCompile      bool      `json:"should_compile"`
	ExpectedReturnCode *int64    `json:"expected_return_code,omitempty"`
	Compiled           bool      `json:"compiled"`
	ExitCode           *int64    `json:"exit_code,omitempty"`
	TimedOut           bool      `json:"timed_out,omitempty"`
	Stdout             string    `json:"stdout,omitempty"`
	Stderr             string    `json:"stderr,omitempty"`
	DurationMs         *int64    `json:"duration_ms,omitempty"`
	Error              string    `json:"error,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

func decodeCaseMessage(msg kafkago.Message, programsDir string) (conformance.TestCase, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg.Value, &header); err != nil {
		return conformance.TestCase{}, fmt.Errorf("decode message: %w", err)
	}

	msgType := header.Type
	if msgType == "" {
		msgType = messageTypeCase
	}

	switch msgType {
	case messageTypeCase:
		return cases.ParseRecord(msg.Value, programsDir)
	case messageTypeDone:
		return conformance.TestCase{}, io.EOF
	default:
		return conformance.TestCase{}, fmt.Errorf("unknown message type %q", msgType)
	}
}

func encodeCase(tc conformance.TestCase) ([]byte, error) {
	payload, err := json.Marshal(caseEnvelope{Type: messageTypeCase, Record: cases.NewRecord(tc)})
	if err != nil {
		return nil, fmt.Errorf("marshal case: %w", err)
	}
	return payload, nil
}

func encodeDone() []byte {
	return []byte(`{"type":"` + messageTypeDone + `"}`)
}

func encodeVerdict(runID string, verdict conformance.Verdict) ([]byte, error) {
	payload, err := json.Marshal(makeVerdictEnvelope(runID, verdict))
	if err != nil {
		return nil, fmt.Errorf("marshal verdict: %w", err)
	}
	return payload, nil
}

func makeVerdictEnvelope(runID string, verdict conformance.Verdict) verdictEnvelope {
	envelope := verdictEnvelope{
		RunID:         runID,
		Case:          verdict.CaseName,
		File:          verdict.Expected.File,
		Passed:        verdict.Passed,
		Reason:        string(verdict.Reason),
		ShouldCompile: verdict.Expected.ShouldCompile,
		Timestamp:     time.Now().UTC(),
	}

	if verdict.Expected.ShouldCompile {
		expected := verdict.Expected.ExpectedExitCode
		envelope.ExpectedReturnCode = &expected
	}

	if result := verdict.Result; result != nil {
		envelope.Compiled = result.CompileSucceeded
		if result.ExitCode.Valid {
			exit := result.ExitCode.Value
			envelope.ExitCode = &exit
		}
		dur := result.Duration.Milliseconds()
		envelope.DurationMs = &dur
		envelope.TimedOut = result.TimedOut
		envelope.Stdout = result.Stdout
		envelope.Stderr = result.Stderr
	}

	if verdict.Err != nil {
		envelope.Error = verdict.Err.Error()
	}

	return envelope
}
