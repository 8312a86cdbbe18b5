package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fastcalorie/nutridb/internal/entity"
)

// ErrNoJSONArray means the oracle's response contained no array-shaped
// substring at all: corrupted or off-script output, not an empty page.
var ErrNoJSONArray = errors.New("response did not contain a JSON array")

// ParseResult is the tagged outcome of parsing an oracle response. Empty is
// true when the oracle explicitly returned [], i.e. it looked at the unit
// and found nothing; callers can distinguish that from a parse failure,
// which is reported through the error return instead.
type ParseResult struct {
	Items []entity.ExtractedItem
	Empty bool
}

// ParseItemsResponse locates the first JSON array substring in free-form
// oracle output (models wrap arrays in prose or code fences despite
// instructions) and decodes it into extracted items.
func ParseItemsResponse(text string) (ParseResult, error) {
	raw, ok := firstJSONArray(text)
	if !ok {
		return ParseResult{}, ErrNoJSONArray
	}

	sanitized, err := sanitizeItemArray([]byte(raw))
	if err != nil {
		return ParseResult{}, fmt.Errorf("decode item array: %w", err)
	}
	var items []entity.ExtractedItem
	if err := json.Unmarshal(sanitized, &items); err != nil {
		return ParseResult{}, fmt.Errorf("decode item array: %w", err)
	}
	if len(items) == 0 {
		return ParseResult{Empty: true}, nil
	}
	return ParseResult{Items: items}, nil
}

// firstJSONArray returns the substring spanning the first '[' through its
// matching ']', tracking string literals so brackets inside item names do
// not unbalance the scan.
func firstJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
