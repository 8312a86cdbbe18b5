package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fastcalorie/nutridb/internal/entity"
	"github.com/fastcalorie/nutridb/internal/llm"
	"github.com/fastcalorie/nutridb/internal/split"
)

// DefaultConcurrency bounds in-flight oracle calls. The oracle is a
// rate-limited external dependency; unbounded fan-out would throttle the
// whole job.
const DefaultConcurrency = 5

// ProgressFunc receives coarse progress updates. It may be called zero, one,
// or many times, never concurrently with itself, and must not influence the
// orchestrator's outcome.
type ProgressFunc func(entity.PipelineProgress)

// Result is the merged output of one orchestrator run. FailedUnits holds
// the indices of units whose extraction failed; their items are simply
// absent from Items.
type Result struct {
	Items       []entity.ExtractedItem
	FailedUnits []int
}

// Orchestrator fans the extraction oracle out across units with a bounded
// worker pool and merges the per-unit results in document order.
type Orchestrator struct {
	extractor   llm.ItemExtractor
	concurrency int
	logger      *slog.Logger
}

func NewOrchestrator(extractor llm.ItemExtractor, concurrency int, logger *slog.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{extractor: extractor, concurrency: concurrency, logger: logger}
}

type unitOutcome struct {
	items  []entity.ExtractedItem
	failed bool
}

// Run extracts every unit and returns the merged, deduplicated item list.
// A single unit's failure never aborts the run; it is recorded in
// FailedUnits and extraction continues. The merged order depends only on
// the original unit order, never on completion order.
func (o *Orchestrator) Run(ctx context.Context, units []split.Unit, restaurantName string, onProgress ProgressFunc) (Result, error) {
	total := len(units)
	notify := func(p entity.PipelineProgress) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	notify(entity.PipelineProgress{TotalUnits: total, Stage: entity.StageProcessing})

	outcomes := make([]unitOutcome, total)

	// categories is the shared "discovered so far" accumulator. Each unit
	// gets an immutable snapshot taken at dispatch time; new categories are
	// folded in only after a unit completes, so in-flight calls never
	// observe a mutating slice.
	var mu sync.Mutex
	var categories []string
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i := range units {
		unit := units[i]
		g.Go(func() error {
			mu.Lock()
			snapshot := make([]string, len(categories))
			copy(snapshot, categories)
			notify(entity.PipelineProgress{
				TotalUnits:     total,
				CompletedUnits: completed,
				CurrentUnit:    unit.Index + 1,
				Stage:          entity.StageProcessing,
			})
			mu.Unlock()

			items, err := o.extractor.ExtractItems(gctx, llm.ExtractRequest{
				RestaurantName:  restaurantName,
				PageNumber:      unit.Page,
				PageText:        unit.Text,
				PagePDF:         unit.PDF,
				KnownCategories: snapshot,
			})

			mu.Lock()
			defer mu.Unlock()
			completed++
			if err != nil {
				o.logger.Warn("unit extraction failed", "unit", unit.Index, "page", unit.Page, "error", err)
				outcomes[unit.Index] = unitOutcome{failed: true}
				return nil
			}
			outcomes[unit.Index] = unitOutcome{items: items}
			for _, it := range items {
				if it.Category != "" && !contains(categories, it.Category) {
					categories = append(categories, it.Category)
				}
			}
			notify(entity.PipelineProgress{
				TotalUnits:     total,
				CompletedUnits: completed,
				Stage:          entity.StageProcessing,
			})
			return nil
		})
	}

	// Workers only ever return nil; Wait surfaces nothing but is kept for
	// pool draining.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	notify(entity.PipelineProgress{TotalUnits: total, CompletedUnits: total, Stage: entity.StageMerging})

	return mergeOutcomes(outcomes), nil
}

// mergeOutcomes flattens per-unit results in unit order and drops later
// items whose normalized name was already seen. Cross-unit duplication is
// routine: menus repeat items in tables of contents and summary pages.
func mergeOutcomes(outcomes []unitOutcome) Result {
	var res Result
	seen := make(map[string]struct{})
	for i, out := range outcomes {
		if out.failed {
			res.FailedUnits = append(res.FailedUnits, i)
			continue
		}
		for _, item := range out.items {
			key := strings.ToLower(strings.TrimSpace(item.Name))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			res.Items = append(res.Items, item)
		}
	}
	return res
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
