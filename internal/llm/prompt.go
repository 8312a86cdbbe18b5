package llm

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt is the document-level extraction instruction. Field
// names and types must stay in lockstep with entity.ExtractedItem and
// BuildItemsJSONSchema.
func BuildSystemPrompt(standardCategories []string) string {
	var b strings.Builder
	b.WriteString("You are a nutrition data extraction agent. Your job is to analyze restaurant nutrition PDF documents and extract structured JSON data for every menu item you can find.\n\n")
	b.WriteString("## Output schema\n\n")
	b.WriteString("Return a JSON array where each element is an object with these exact fields:\n\n")
	b.WriteString(itemShapeDoc)
	b.WriteString("\n## Standard categories\n\n")
	b.WriteString("Use these categories when they fit. Create new ones only when necessary:\n")
	for _, c := range standardCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\n## Rules\n\n")
	b.WriteString(`1. Extract EVERY distinct menu item from ALL pages of the document. Do not skip items.
2. If a value is not visible or unclear for a field, set it to null. Do NOT guess or calculate missing values.
3. Calories is the most critical field. If you cannot determine calories for an item, set confidence to "low" and explain in notes.
4. For items with size variants (Small, Medium, Large), create separate entries for EACH size. Name them like "French Fries (Small)", "French Fries (Medium)", etc.
5. For combo/meal entries, extract them as separate items only if the document provides distinct nutrition data for them.
6. Do not include section headers, footnotes, or non-food-item text as items.
7. Handle "0" values correctly: a 0 for trans fat is valid data, not missing data.
8. If the document uses a dash or "N/A" for a value, set that field to null.
9. Round all decimal values to 1 decimal place.
10. Read tables carefully: nutrition values are often displayed in columns. Match each item row with its corresponding values.

## Output format

Return ONLY the JSON array. No markdown, no code fences, no explanation text. Just the raw JSON array starting with [ and ending with ].`)
	return b.String()
}

// BuildUnitPrompt is the per-unit instruction. knownCategories is the
// snapshot of categories discovered by earlier units; it keeps later units
// from inventing near-duplicate category names.
func BuildUnitPrompt(restaurantName string, knownCategories []string) string {
	cats := "None yet"
	if len(knownCategories) > 0 {
		cats = strings.Join(knownCategories, ", ")
	}

	var b strings.Builder
	b.WriteString("You are extracting nutrition data from a single section of a restaurant nutrition PDF.\n\n")
	fmt.Fprintf(&b, "Restaurant: %s\n", restaurantName)
	fmt.Fprintf(&b, "Categories found in previous sections: %s\n\n", cats)
	b.WriteString(`## Instructions

1. Extract ALL menu items visible in this section
2. Use existing categories when they fit, or create new ones if needed
3. If this section contains no menu items (e.g., cover page, legal text, footnotes), return an empty array: []
4. Some items may span multiple columns or rows - extract each distinct item once

## Output format

Return ONLY a JSON array of items. Each item:

`)
	b.WriteString(itemShapeDoc)
	b.WriteString("\nReturn [] if no menu items in this section.")
	return b.String()
}

const itemShapeDoc = `{
  "name": "string - exact item name as shown in the document",
  "category": "string - one of the standard categories, or a new one if needed",
  "servingSize": "string or null - e.g. '1 sandwich (215g)' or '1 serving'",
  "calories": "integer or null - total calories (kcal)",
  "totalFatG": "number or null - total fat in grams",
  "saturatedFatG": "number or null - saturated fat in grams",
  "transFatG": "number or null - trans fat in grams",
  "cholesterolMg": "number or null - cholesterol in mg",
  "sodiumMg": "number or null - sodium in mg",
  "totalCarbsG": "number or null - total carbohydrates in grams",
  "dietaryFiberG": "number or null - dietary fiber in grams",
  "sugarsG": "number or null - total sugars in grams",
  "proteinG": "number or null - protein in grams",
  "confidence": "'high' | 'medium' | 'low' - your confidence in the extraction accuracy",
  "notes": "string or null - any ambiguities or issues you noticed"
}
`
