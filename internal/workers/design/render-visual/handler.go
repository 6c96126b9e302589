// internal/workers/design/render-visual/handler.go
package rendervisual

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"forgevision/internal/common/logger"
	"forgevision/internal/models"
)

const (
	TaskType = "render-visual"
)

var (
	ErrRenderFailure = errors.New("RENDER_FAILURE")
)

// ImageRequest is one text-to-image call at a fixed resolution.
type ImageRequest struct {
	Prompt string
	Width  int
	Height int
}

// ImageGenerator is a hosted text-to-image service. It returns encoded
// image bytes in whatever format the service chose.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

type Handler struct {
	config    *Config
	generator ImageGenerator
	logger    logger.Logger
}

func NewHandler(config *Config, generator ImageGenerator, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		generator: generator,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Prompt) == "" {
		return nil, fmt.Errorf("%w: image prompt is empty", ErrRenderFailure)
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	data, err := h.generator.GenerateImage(ctx, ImageRequest{
		Prompt: input.Prompt,
		Width:  h.config.Width,
		Height: h.config.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}

	output, err := toPNG(data)
	if err != nil {
		h.logger.Warn("image service returned undecodable data", map[string]interface{}{
			"bytes": len(data),
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}

	h.logger.Info("visual prototype rendered", map[string]interface{}{
		"sourceType": output.SourceType,
		"width":      output.Width,
		"height":     output.Height,
		"bytes":      len(output.Image),
	})

	return output, nil
}

// toPNG decodes any registered raster format and re-encodes it as PNG.
// PNG input passes through untouched.
func toPNG(data []byte) (*Output, error) {
	if len(data) == 0 {
		return nil, errors.New("image service returned no data")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	out := &Output{
		ContentType: models.RenderContentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		SourceType:  format,
	}

	if format == "png" {
		out.Image = data
		return out, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	out.Image = buf.Bytes()
	return out, nil
}
