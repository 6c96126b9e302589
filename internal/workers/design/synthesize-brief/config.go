// internal/workers/design/synthesize-brief/config.go
package synthesizebrief

import "time"

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string // overrides the Gemini endpoint; tests only
}

func LoadConfig() *Config {
	return &Config{
		Model:   "gemini-3-flash-preview",
		Timeout: 60 * time.Second,
	}
}
