// internal/workers/design/collect-request/handler.go
package collectrequest

import (
	"errors"
	"fmt"
	"strings"

	"forgevision/internal/common/logger"
	"forgevision/internal/common/validation"
	"forgevision/internal/models"
)

const (
	TaskType = "collect-request"

	MaxConceptLength = 2000
)

var (
	ErrInvalidRequest = errors.New("INVALID_REQUEST")
	ErrNotSubmitted   = errors.New("SYNTHESIZE_NOT_REQUESTED")
)

// Handler validates dashboard input into a DesignRequest. It has no side
// effects beyond logging.
type Handler struct {
	logger logger.Logger
	schema validation.FieldSchema
}

func NewHandler(log logger.Logger) *Handler {
	return &Handler{
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
		schema: requestSchema(),
	}
}

func requestSchema() validation.FieldSchema {
	return validation.FieldSchema{
		Required: []string{"concept", "industry", "style"},
		Properties: map[string]validation.Property{
			"concept": {
				Type:      "string",
				NotBlank:  true,
				MaxLength: validation.IntPtr(MaxConceptLength),
			},
			"industry": {Type: "string", Enum: models.Industries},
			"style":    {Type: "string", Enum: models.Styles},
		},
	}
}

// Ready is the "ready to synthesize" gate: an explicit synthesize action
// was taken and the concept is non-empty after trimming.
func Ready(input *Input) bool {
	return input != nil && input.Submitted && strings.TrimSpace(input.Concept) != ""
}

// Execute applies option defaults, validates and returns the request.
func (h *Handler) Execute(input *Input) (*models.DesignRequest, error) {
	if input == nil || !input.Submitted {
		return nil, ErrNotSubmitted
	}

	req := &models.DesignRequest{
		Concept:  strings.TrimSpace(input.Concept),
		Industry: firstNonEmpty(strings.TrimSpace(input.Industry), models.Industries[0]),
		Style:    firstNonEmpty(strings.TrimSpace(input.Style), models.Styles[0]),
	}

	result := validation.Validate(map[string]string{
		"concept":  req.Concept,
		"industry": req.Industry,
		"style":    req.Style,
	}, h.schema)

	if !result.Valid {
		h.logger.Warn("design request rejected", map[string]interface{}{
			"errors": result.GetErrorMessages(),
		})
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(result.GetErrorMessages(), "; "))
	}

	h.logger.Debug("design request collected", map[string]interface{}{
		"industry":      req.Industry,
		"style":         req.Style,
		"conceptLength": len(req.Concept),
	})

	return req, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
