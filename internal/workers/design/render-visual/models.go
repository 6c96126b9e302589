// internal/workers/design/render-visual/models.go
package rendervisual

type Input struct {
	Prompt string `json:"prompt"`
}

// Output is always PNG regardless of what the image service sent.
type Output struct {
	Image       []byte `json:"-"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SourceType  string `json:"sourceType"`
}
