package store

// ErpItem represents a single order record from the ERP feed.
type ErpItem struct {
	SapID              string  `json:"sap_id"`
	Customer           string  `json:"customer"`
	Priority           int     `json:"priority"`
	Duration           string  `json:"duration"`
	DurationHours      float64 `json:"-"`
	RequiredCapacity   int     `json:"required_capacity"`
	MaterialsAvailable bool    `json:"materials_available"`
}
