// internal/workers/design/synthesize-brief/models.go
package synthesizebrief

import "forgevision/internal/models"

type Input struct {
	Concept  string `json:"concept"`
	Industry string `json:"industry"`
	Style    string `json:"style"`
}

type Output struct {
	Brief     models.DesignBrief     `json:"brief"`
	Blueprint map[string]interface{} `json:"blueprint"`
	Strategy  Strategy               `json:"strategy"`
}
