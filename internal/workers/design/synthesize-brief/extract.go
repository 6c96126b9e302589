// internal/workers/design/synthesize-brief/extract.go
package synthesizebrief

import (
	"encoding/json"
	"fmt"
	"strings"

	"forgevision/internal/common/validation"
)

// Strategy names the parse attempt that recovered the blueprint.
type Strategy string

const (
	StrategyDirect        Strategy = "direct"
	StrategyFenceStripped Strategy = "fence_stripped"
	StrategyBoundaryScan  Strategy = "boundary_scan"
)

const fenceMarker = "```"

// Kind tags the top-level JSON value a strategy decoded.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "scalar"
	}
}

// Decoded is the tagged result of a successful parse, before shape checks.
type Decoded struct {
	Kind   Kind
	Object map[string]interface{}
	Array  []interface{}
	Value  interface{}
}

func decode(text string) (*Decoded, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case map[string]interface{}:
		return &Decoded{Kind: KindObject, Object: t, Value: v}, nil
	case []interface{}:
		return &Decoded{Kind: KindArray, Array: t, Value: v}, nil
	default:
		return &Decoded{Kind: KindScalar, Value: v}, nil
	}
}

// Extraction is a blueprint recovered from a raw model response.
type Extraction struct {
	Strategy  Strategy
	Kind      Kind
	Blueprint map[string]interface{}
}

type parseStrategy struct {
	name Strategy
	// candidate returns the text to parse, or false when the strategy does
	// not apply to this response.
	candidate func(trimmed, unfenced string, fenced bool) (string, bool)
}

var parseStrategies = []parseStrategy{
	{
		name: StrategyDirect,
		candidate: func(trimmed, _ string, fenced bool) (string, bool) {
			return trimmed, !fenced
		},
	},
	{
		name: StrategyFenceStripped,
		candidate: func(_, unfenced string, fenced bool) (string, bool) {
			return unfenced, fenced
		},
	},
	{
		// First '{' to last '}', inclusive. Braces in surrounding prose can
		// widen the slice; that case is left as a parse failure or a wrong
		// object rather than guessed at.
		name: StrategyBoundaryScan,
		candidate: func(_, unfenced string, _ bool) (string, bool) {
			start := strings.Index(unfenced, "{")
			end := strings.LastIndex(unfenced, "}")
			if start == -1 || end == -1 || start >= end {
				return "", false
			}
			return unfenced[start : end+1], true
		},
	},
}

// Extract recovers a validated blueprint object from a raw model response.
// It returns an error wrapping ErrBlueprintParse when no strategy yields
// JSON, and ErrInvalidBlueprint when the JSON lacks the blueprint shape.
func Extract(raw string) (*Extraction, error) {
	decoded, strategy, err := parse(raw)
	if err != nil {
		return nil, err
	}

	blueprint, err := normalize(decoded)
	if err != nil {
		return nil, err
	}

	return &Extraction{
		Strategy:  strategy,
		Kind:      decoded.Kind,
		Blueprint: blueprint,
	}, nil
}

func parse(raw string) (*Decoded, Strategy, error) {
	trimmed := strings.TrimSpace(raw)
	unfenced, fenced := stripFence(trimmed)

	var lastErr error
	for _, s := range parseStrategies {
		text, ok := s.candidate(trimmed, unfenced, fenced)
		if !ok {
			continue
		}
		decoded, err := decode(text)
		if err == nil {
			return decoded, s.name, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, "", fmt.Errorf("%w: no JSON object delimiters found", ErrBlueprintParse)
	}
	return nil, "", fmt.Errorf("%w: %v", ErrBlueprintParse, lastErr)
}

// stripFence drops a leading fence line (with optional language tag) and a
// trailing fence line, then re-trims. The second return reports whether the
// text started with a fence at all.
func stripFence(text string) (string, bool) {
	if !strings.HasPrefix(text, fenceMarker) {
		return text, false
	}

	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimRight(lines[n-1], "\r"), fenceMarker) {
		lines = lines[:n-1]
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), true
}

// normalize selects the first candidate of an array and checks the shape
// before any field is read.
func normalize(d *Decoded) (map[string]interface{}, error) {
	value := d.Value
	if d.Kind == KindArray {
		if len(d.Array) > 0 {
			value = d.Array[0]
		} else {
			value = map[string]interface{}{}
		}
	}

	if err := validation.ValidateBlueprint(value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlueprint, err)
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidBlueprint, value)
	}
	return obj, nil
}
