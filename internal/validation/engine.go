// Package validation scores extracted menu items against a fixed set of
// data-quality checks. Everything here is pure: the same item list always
// produces the same report, and nothing is persisted or logged.
package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/entity"
)

const (
	minCalories = 1
	maxCalories = 5000
	// macroTolerance is the allowed relative deviation between stated
	// calories and 4/4/9 macro arithmetic before we flag the item.
	macroTolerance = 0.20
	maxSodiumMg    = 10000
)

// RunValidation validates every item independently and returns one result
// per item, index-aligned with the input. The duplicate-name set is computed
// once over the whole list and shared by every item's duplicate check.
func RunValidation(items []entity.ExtractedItem) []entity.ValidationResult {
	dups := duplicateNames(items)
	results := make([]entity.ValidationResult, len(items))
	for i, item := range items {
		results[i] = validateItem(item, i, dups)
	}
	return results
}

// ValidateSingleItem re-validates one item at the given index. The full
// current item list is required because duplicate detection depends on it.
func ValidateSingleItem(item entity.ExtractedItem, index int, allItems []entity.ExtractedItem) entity.ValidationResult {
	return validateItem(item, index, duplicateNames(allItems))
}

func duplicateNames(items []entity.ExtractedItem) map[string]struct{} {
	counts := make(map[string]int, len(items))
	for _, it := range items {
		counts[it.Name]++
	}
	dups := make(map[string]struct{})
	for name, n := range counts {
		if n > 1 {
			dups[name] = struct{}{}
		}
	}
	return dups
}

// validateItem applies every check and rolls the results up by worst
// severity. Checks are additive, not short-circuiting: a reviewer should see
// every problem with an item in one pass.
func validateItem(item entity.ExtractedItem, index int, dups map[string]struct{}) entity.ValidationResult {
	checks := []entity.ValidationCheck{
		checkRequiredFields(item),
		checkCalorieRange(item),
		checkMacroMath(item),
		checkDuplicateName(item, dups),
		checkServingSizePresent(item),
		checkCategoryAssigned(item),
		checkNegativeValues(item),
		checkSodiumRange(item),
		checkConfidence(item),
	}

	overall := entity.CheckPass
	for _, c := range checks {
		overall = overall.Worse(c.Status)
	}

	return entity.ValidationResult{
		ItemIndex: index,
		ItemName:  item.Name,
		Status:    overall,
		Checks:    checks,
	}
}

func checkRequiredFields(item entity.ExtractedItem) entity.ValidationCheck {
	var missing []string
	if item.Name == "" {
		missing = append(missing, "name")
	}
	if item.Calories == nil {
		missing = append(missing, "calories")
	}
	if item.ProteinG == nil {
		missing = append(missing, "proteinG")
	}
	if item.TotalCarbsG == nil {
		missing = append(missing, "totalCarbsG")
	}
	if item.TotalFatG == nil {
		missing = append(missing, "totalFatG")
	}

	if len(missing) > 0 {
		return entity.ValidationCheck{
			Name:    "required_fields",
			Status:  entity.CheckError,
			Message: "Missing required fields: " + strings.Join(missing, ", "),
		}
	}
	return entity.ValidationCheck{Name: "required_fields", Status: entity.CheckPass, Message: "All required fields present"}
}

func checkCalorieRange(item entity.ExtractedItem) entity.ValidationCheck {
	if item.Calories == nil {
		return entity.ValidationCheck{Name: "calorie_range", Status: entity.CheckError, Message: "Calories is missing"}
	}
	if *item.Calories < minCalories || *item.Calories > maxCalories {
		return entity.ValidationCheck{
			Name:    "calorie_range",
			Status:  entity.CheckError,
			Message: fmt.Sprintf("Calories %d is outside valid range (%d-%d)", *item.Calories, minCalories, maxCalories),
		}
	}
	return entity.ValidationCheck{Name: "calorie_range", Status: entity.CheckPass, Message: "Calories within valid range"}
}

func checkMacroMath(item entity.ExtractedItem) entity.ValidationCheck {
	if item.Calories == nil || item.ProteinG == nil || item.TotalCarbsG == nil || item.TotalFatG == nil {
		return entity.ValidationCheck{Name: "macro_math", Status: entity.CheckPass, Message: "Skipped (missing macro values)"}
	}

	calculated := *item.ProteinG*4 + *item.TotalCarbsG*4 + *item.TotalFatG*9
	ratio := math.Abs(calculated-float64(*item.Calories)) / float64(*item.Calories)

	if ratio > macroTolerance {
		return entity.ValidationCheck{
			Name:   "macro_math",
			Status: entity.CheckWarning,
			Message: fmt.Sprintf("Macro-calculated calories (%d) differs from stated (%d) by %d%%",
				int(math.Round(calculated)), *item.Calories, int(math.Round(ratio*100))),
		}
	}
	return entity.ValidationCheck{Name: "macro_math", Status: entity.CheckPass, Message: "Macro math within 20% tolerance"}
}

func checkDuplicateName(item entity.ExtractedItem, dups map[string]struct{}) entity.ValidationCheck {
	if _, ok := dups[item.Name]; ok {
		return entity.ValidationCheck{
			Name:    "duplicate_name",
			Status:  entity.CheckWarning,
			Message: fmt.Sprintf("Duplicate item name: %q", item.Name),
		}
	}
	return entity.ValidationCheck{Name: "duplicate_name", Status: entity.CheckPass, Message: "No duplicate names"}
}

func checkServingSizePresent(item entity.ExtractedItem) entity.ValidationCheck {
	if item.ServingSize == nil || strings.TrimSpace(*item.ServingSize) == "" {
		return entity.ValidationCheck{Name: "serving_size_present", Status: entity.CheckWarning, Message: "Serving size is missing"}
	}
	return entity.ValidationCheck{Name: "serving_size_present", Status: entity.CheckPass, Message: "Serving size present"}
}

func checkCategoryAssigned(item entity.ExtractedItem) entity.ValidationCheck {
	if strings.TrimSpace(item.Category) == "" {
		return entity.ValidationCheck{Name: "category_assigned", Status: entity.CheckError, Message: "Category is missing"}
	}
	return entity.ValidationCheck{Name: "category_assigned", Status: entity.CheckPass, Message: "Category assigned"}
}

func checkNegativeValues(item entity.ExtractedItem) entity.ValidationCheck {
	var calories *float64
	if item.Calories != nil {
		f := float64(*item.Calories)
		calories = &f
	}
	fields := []struct {
		name  string
		value *float64
	}{
		{"calories", calories},
		{"totalFatG", item.TotalFatG},
		{"saturatedFatG", item.SaturatedFatG},
		{"transFatG", item.TransFatG},
		{"cholesterolMg", item.CholesterolMg},
		{"sodiumMg", item.SodiumMg},
		{"totalCarbsG", item.TotalCarbsG},
		{"dietaryFiberG", item.DietaryFiberG},
		{"sugarsG", item.SugarsG},
		{"proteinG", item.ProteinG},
	}

	var negative []string
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			negative = append(negative, f.name)
		}
	}
	if len(negative) > 0 {
		return entity.ValidationCheck{
			Name:    "negative_values",
			Status:  entity.CheckError,
			Message: "Negative values found: " + strings.Join(negative, ", "),
		}
	}
	return entity.ValidationCheck{Name: "negative_values", Status: entity.CheckPass, Message: "No negative values"}
}

func checkSodiumRange(item entity.ExtractedItem) entity.ValidationCheck {
	if item.SodiumMg != nil && *item.SodiumMg > maxSodiumMg {
		return entity.ValidationCheck{
			Name:    "sodium_range",
			Status:  entity.CheckWarning,
			Message: fmt.Sprintf("Sodium %.0fmg exceeds %dmg - likely an extraction or unit error", *item.SodiumMg, maxSodiumMg),
		}
	}
	return entity.ValidationCheck{Name: "sodium_range", Status: entity.CheckPass, Message: "Sodium within expected range"}
}

func checkConfidence(item entity.ExtractedItem) entity.ValidationCheck {
	if item.Confidence == constants.ConfidenceLow {
		msg := "Extraction confidence is low"
		if item.Notes != nil && *item.Notes != "" {
			msg += ": " + *item.Notes
		}
		return entity.ValidationCheck{Name: "confidence_check", Status: entity.CheckWarning, Message: msg}
	}
	return entity.ValidationCheck{Name: "confidence_check", Status: entity.CheckPass, Message: "Extraction confidence acceptable"}
}
