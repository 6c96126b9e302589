// internal/workers/design/collect-request/models.go
package collectrequest

// Input is the raw form submission.
type Input struct {
	Concept   string `json:"concept"`
	Industry  string `json:"industry"`
	Style     string `json:"style"`
	Submitted bool   `json:"submitted"`
}
