package models

// Market segments offered by the dashboard, in display order.
var Industries = []string{
	"Aerospace & Defense",
	"Heavy Automotive",
	"Precision Electronics",
	"Renewable Systems",
	"Industrial Robotics",
}

// Aesthetic drivers offered by the dashboard, in display order.
var Styles = []string{
	"High-Tech Prototype",
	"Sleek Minimalist",
	"Rugged Industrial",
	"Tactical Hardware",
}

// DesignRequest is a collected, validated synthesize request.
type DesignRequest struct {
	Concept  string `json:"concept"`
	Industry string `json:"industry"`
	Style    string `json:"style"`
}
