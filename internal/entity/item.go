package entity

import (
	"encoding/json"
	"fmt"

	"github.com/fastcalorie/nutridb/constants"
)

// ExtractedItem is one candidate menu item produced by extraction. It only
// exists as an element of an IngestionJob's structured data until approval
// materializes a MenuItem from it. Nil numeric fields mean "not stated in
// the source document", never zero.
type ExtractedItem struct {
	Name          string               `json:"name"`
	Category      string               `json:"category"`
	ServingSize   *string              `json:"servingSize"`
	Calories      *int                 `json:"calories"`
	TotalFatG     *float64             `json:"totalFatG"`
	SaturatedFatG *float64             `json:"saturatedFatG"`
	TransFatG     *float64             `json:"transFatG"`
	CholesterolMg *float64             `json:"cholesterolMg"`
	SodiumMg      *float64             `json:"sodiumMg"`
	TotalCarbsG   *float64             `json:"totalCarbsG"`
	DietaryFiberG *float64             `json:"dietaryFiberG"`
	SugarsG       *float64             `json:"sugarsG"`
	ProteinG      *float64             `json:"proteinG"`
	Confidence    constants.Confidence `json:"confidence"`
	Notes         *string              `json:"notes"`
}

// MergePatch overlays a partial JSON update onto the item, returning the
// merged copy. Keys absent from the patch keep their current value; an
// explicit null clears an optional field.
func (it ExtractedItem) MergePatch(patch json.RawMessage) (ExtractedItem, error) {
	base, err := json.Marshal(it)
	if err != nil {
		return ExtractedItem{}, fmt.Errorf("marshal item: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return ExtractedItem{}, fmt.Errorf("decode item: %w", err)
	}
	var p map[string]json.RawMessage
	if err := json.Unmarshal(patch, &p); err != nil {
		return ExtractedItem{}, fmt.Errorf("decode patch: %w", err)
	}
	for k, v := range p {
		m[k] = v
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return ExtractedItem{}, fmt.Errorf("encode merged item: %w", err)
	}
	var out ExtractedItem
	if err := json.Unmarshal(merged, &out); err != nil {
		return ExtractedItem{}, fmt.Errorf("patch does not fit item shape: %w", err)
	}
	return out, nil
}
