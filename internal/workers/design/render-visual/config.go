// internal/workers/design/render-visual/config.go
package rendervisual

import (
	"time"

	"forgevision/internal/models"
)

type Config struct {
	Token   string
	BaseURL string
	Model   string
	Timeout time.Duration
	Width   int
	Height  int
}

func LoadConfig() *Config {
	return &Config{
		BaseURL: "https://router.huggingface.co/hf-inference/models",
		Model:   "black-forest-labs/FLUX.1-schnell",
		Timeout: 120 * time.Second,
		Width:   models.RenderWidth,
		Height:  models.RenderHeight,
	}
}
