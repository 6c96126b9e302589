// internal/workers/design/synthesize-brief/handler.go
package synthesizebrief

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forgevision/internal/common/logger"
	"forgevision/internal/common/metrics"
	"forgevision/internal/models"
)

const (
	TaskType = "synthesize-brief"
)

var (
	ErrSynthesisFailed  = errors.New("SYNTHESIS_FAILURE")
	ErrBlueprintParse   = errors.New("BLUEPRINT_PARSE_FAILURE")
	ErrInvalidBlueprint = errors.New("INVALID_BLUEPRINT_FAILURE")
)

// TextGenerator is a hosted reasoning engine that answers a prompt with
// text it was asked to format as JSON. Nothing guarantees it complied.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type Handler struct {
	config    *Config
	generator TextGenerator
	logger    logger.Logger
}

func NewHandler(config *Config, generator TextGenerator, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		generator: generator,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute asks the reasoning engine for a blueprint and reduces whatever it
// returns to a DesignBrief. One call, no retries.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	prompt := BuildPrompt(input)

	raw, err := h.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: reasoning engine returned no text", ErrSynthesisFailed)
	}

	extraction, err := Extract(raw)
	if err != nil {
		h.logger.Warn("blueprint extraction failed", map[string]interface{}{
			"error":          err.Error(),
			"responseLength": len(raw),
		})
		return nil, err
	}

	metrics.ExtractionStrategy.WithLabelValues(string(extraction.Strategy)).Inc()

	brief := models.BriefFromMap(extraction.Blueprint)

	h.logger.Info("design brief synthesized", map[string]interface{}{
		"strategy":     string(extraction.Strategy),
		"kind":         extraction.Kind.String(),
		"name":         brief.Name,
		"innovations":  len(brief.Innovations),
		"promptLength": len(brief.ImagePrompt),
	})

	return &Output{
		Brief:     brief,
		Blueprint: extraction.Blueprint,
		Strategy:  extraction.Strategy,
	}, nil
}

// BuildPrompt embeds the three request values verbatim.
func BuildPrompt(input *Input) string {
	var parts []string

	parts = append(parts, "You are an industrial design engineering assistant.")
	parts = append(parts, fmt.Sprintf("Design a manufacturing prototype for: '%s'.", input.Concept))
	parts = append(parts, fmt.Sprintf("Vertical: %s.", input.Industry))
	parts = append(parts, fmt.Sprintf("Style: %s.", input.Style))
	parts = append(parts, "Return JSON ONLY with fields: name, philosophy, innovations (list), specs (materials, dimensions, power, cost), image_prompt.")
	parts = append(parts, "Ensure image_prompt is highly descriptive.")

	return strings.Join(parts, " ")
}
