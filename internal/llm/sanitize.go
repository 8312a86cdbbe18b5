package llm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var floatItemFields = []string{
	"totalFatG", "saturatedFatG", "transFatG", "cholesterolMg", "sodiumMg",
	"totalCarbsG", "dietaryFiberG", "sugarsG", "proteinG",
}

// sanitizeItemArray coerces off-shape OPTIONAL numerics before the array is
// decoded into typed items. Models occasionally emit "calories": 450.0 or
// quote numbers as strings; a whole unit should not be lost over that.
// Required fields (name, category, confidence) are never touched, and an
// optional value that cannot be coerced is dropped so it reads as "not
// stated" rather than failing the decode.
func sanitizeItemArray(raw []byte) ([]byte, error) {
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, err
	}

	for _, m := range arr {
		coerceInt(m, "calories")
		for _, k := range floatItemFields {
			coerceFloat(m, k)
		}
	}
	return json.Marshal(arr)
}

func coerceInt(m map[string]any, k string) {
	v, ok := m[k]
	if !ok || v == nil {
		return
	}
	switch t := v.(type) {
	case float64:
		m[k] = int64(math.Round(t))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			m[k] = int64(math.Round(f))
		} else {
			delete(m, k)
		}
	default:
		delete(m, k)
	}
}

func coerceFloat(m map[string]any, k string) {
	v, ok := m[k]
	if !ok || v == nil {
		return
	}
	switch t := v.(type) {
	case float64:
		// already the shape the decoder wants
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			m[k] = f
		} else {
			delete(m, k)
		}
	default:
		delete(m, k)
	}
}
