// pkg/registry/schema.go
package registry

// StageRegistry describes the design pipeline for the blueprint page and
// the CLI.
type StageRegistry struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Stages      []Stage `json:"stages"`
}

type Stage struct {
	ID          string   `json:"id"`
	Order       int      `json:"order"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	TaskType    string   `json:"taskType"`
	Engine      string   `json:"engine,omitempty"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	ErrorCodes  []string `json:"errorCodes"`
	Timeout     string   `json:"timeout,omitempty"`
	Tags        []string `json:"tags"`
}
