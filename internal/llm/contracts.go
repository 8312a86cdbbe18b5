package llm

import (
	"context"

	"github.com/fastcalorie/nutridb/internal/entity"
)

// ExtractRequest carries one extractable unit to the oracle. KnownCategories
// is a read-only snapshot of category names discovered by units that already
// completed; it steers the oracle toward consistent categorization and is
// never mutated by the extractor.
type ExtractRequest struct {
	RestaurantName  string
	PageNumber      int    // 1-based for page units, 0 for text chunks
	PageText        string // unit text layer; may be empty for vision payloads
	PagePDF         []byte // single-page PDF blob; nil for text chunks
	KnownCategories []string
}

// ItemExtractor is the extraction-oracle interface the orchestrator depends
// on. A returned error is unit-local: the caller decides whether it fails
// the job or just drops the unit. An empty slice with a nil error means the
// oracle affirmatively reported no items on this unit.
type ItemExtractor interface {
	ExtractItems(ctx context.Context, req ExtractRequest) ([]entity.ExtractedItem, error)
}
