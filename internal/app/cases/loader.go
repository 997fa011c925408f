// Package cases loads the declarative case list and hands it to the harness
// in order.
package cases

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/dolev-goaz/language-compiler/internal/domain/conformance"
)

// Load reads the JSON case list at path. Source files are resolved relative
// to programsDir. Any problem with the resource yields a *conformance.LoadError.
func Load(path, programsDir string) ([]conformance.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &conformance.LoadError{Path: path, Index: -1, Err: err}
	}

	cases, err := Decode(data, programsDir)
	if err != nil {
		var loadErr *conformance.LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return nil, err
	}
	return cases, nil
}

// Decode parses a JSON array of case records.
func Decode(data []byte, programsDir string) ([]conformance.TestCase, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &conformance.LoadError{Index: -1, Err: fmt.Errorf("malformed case list: %w", err)}
	}

	cases := make([]conformance.TestCase, 0, len(raws))
	seen := make(map[string]int, len(raws))
	for idx, raw := range raws {
		tc, err := ParseRecord(raw, programsDir)
		if err != nil {
			return nil, RecordError(idx, err)
		}

		if first, dup := seen[tc.Name]; dup {
			return nil, &conformance.LoadError{
				Index: idx,
				Field: "name",
				Err:   fmt.Errorf("duplicate case name %q (first defined by record %d)", tc.Name, first),
			}
		}
		seen[tc.Name] = idx
		cases = append(cases, tc)
	}

	return cases, nil
}

// Filter keeps the cases whose name matches pattern, preserving order.
// An empty pattern keeps everything.
func Filter(cases []conformance.TestCase, pattern string) ([]conformance.TestCase, error) {
	if pattern == "" {
		return cases, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &conformance.LoadError{Index: -1, Err: fmt.Errorf("invalid case filter: %w", err)}
	}

	kept := make([]conformance.TestCase, 0, len(cases))
	for _, tc := range cases {
		if re.MatchString(tc.Name) {
			kept = append(kept, tc)
		}
	}
	return kept, nil
}
