// Package recipes resolves finished goods into raw material requirements.
package recipes

// Recipe states how much of a raw material one unit of a sweet consumes.
type Recipe struct {
	ID               int64   `json:"id"`
	SweetID          int64   `json:"sweet_id"`
	MaterialID       int64   `json:"material_id"`
	MaterialName     string  `json:"material_name,omitempty"`
	QuantityRequired float64 `json:"quantity_required"`
}

// Requirement is the total quantity of a material needed for a batch.
type Requirement struct {
	MaterialID   int64   `json:"material_id"`
	MaterialName string  `json:"material_name,omitempty"`
	Quantity     float64 `json:"quantity"`
}
