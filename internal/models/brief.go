package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Placeholders shown when the reasoning engine omits a field.
const (
	DefaultName       = "Unnamed Concept"
	DefaultPhilosophy = "No philosophy provided."
	DefaultInnovation = "Standard Configuration"
	DefaultMaterials  = "TBD"
	DefaultDimensions = "Standard Scale"
	DefaultPower      = "Passive"
	DefaultCost       = "Market Rate"
)

// ImagePromptField is the only blueprint key that is required.
const ImagePromptField = "image_prompt"

// Fixed render target.
const (
	RenderWidth       = 1024
	RenderHeight      = 768
	RenderContentType = "image/png"
)

// Spec keys recognised inside the "specs" object.
const (
	SpecMaterials  = "materials"
	SpecDimensions = "dimensions"
	SpecPower      = "power"
	SpecCost       = "cost"
)

// DesignBrief is the structured output of the brief synthesizer.
type DesignBrief struct {
	Name        string   `json:"name"`
	Philosophy  string   `json:"philosophy"`
	Innovations []string `json:"innovations"`
	Specs       Specs    `json:"specs"`
	ImagePrompt string   `json:"image_prompt"`
}

// Specs holds only the keys the model actually returned; accessors fall
// back to placeholders at render time.
type Specs map[string]string

func (s Specs) valueOr(key, fallback string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}

func (s Specs) Materials() string  { return s.valueOr(SpecMaterials, DefaultMaterials) }
func (s Specs) Dimensions() string { return s.valueOr(SpecDimensions, DefaultDimensions) }
func (s Specs) Power() string      { return s.valueOr(SpecPower, DefaultPower) }
func (s Specs) Cost() string       { return s.valueOr(SpecCost, DefaultCost) }

// Resolved returns a copy of the specs with every known key filled in.
func (s Specs) Resolved() Specs {
	out := make(Specs, len(s)+4)
	for k, v := range s {
		out[k] = v
	}
	out[SpecMaterials] = s.Materials()
	out[SpecDimensions] = s.Dimensions()
	out[SpecPower] = s.Power()
	out[SpecCost] = s.Cost()
	return out
}

// BriefFromMap converts a validated blueprint object into a DesignBrief.
// The caller guarantees image_prompt is a non-empty string.
func BriefFromMap(obj map[string]interface{}) DesignBrief {
	brief := DesignBrief{
		Name:        DefaultName,
		Philosophy:  DefaultPhilosophy,
		Innovations: []string{DefaultInnovation},
		Specs:       Specs{},
	}

	if v, ok := obj["name"]; ok && v != nil {
		brief.Name = stringify(v)
	}
	if v, ok := obj["philosophy"]; ok && v != nil {
		brief.Philosophy = stringify(v)
	}
	if items, ok := obj["innovations"].([]interface{}); ok && len(items) > 0 {
		brief.Innovations = make([]string, 0, len(items))
		for _, item := range items {
			brief.Innovations = append(brief.Innovations, stringify(item))
		}
	}
	if specs, ok := obj["specs"].(map[string]interface{}); ok {
		for k, v := range specs {
			if v == nil {
				continue
			}
			brief.Specs[k] = stringify(v)
		}
	}
	if prompt, ok := obj[ImagePromptField].(string); ok {
		brief.ImagePrompt = prompt
	}

	return brief
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// RenderResult pairs one brief with its rendered PNG.
type RenderResult struct {
	ID          string        `json:"id"`
	Request     DesignRequest `json:"request"`
	Brief       DesignBrief   `json:"brief"`
	Image       []byte        `json:"image"`
	ContentType string        `json:"contentType"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Summary is the short form used in log lines.
func (r *RenderResult) Summary() string {
	return fmt.Sprintf("%s (%dx%d, %d bytes)", strings.TrimSpace(r.Brief.Name), r.Width, r.Height, len(r.Image))
}
