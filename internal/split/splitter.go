// Package split divides a source PDF into independently extractable units.
// Two strategies exist: one unit per physical page (each unit a valid
// single-page PDF plus its text), or length-based chunks of the document's
// raw text. All PDF manipulation shells out to poppler tools through a
// stubbable Runner.
package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoUnits is returned when a document yields zero extractable units.
// Fatal for the owning job; the splitter never retries.
var ErrNoUnits = errors.New("document has no extractable units")

// Unit is one self-contained extractable slice of the source document.
// Index is the zero-based document-order position. Page is the 1-based page
// number for page units, 0 for text chunks. PDF holds the single-page blob
// for page units and is nil for text chunks.
type Unit struct {
	Index int
	Page  int
	Text  string
	PDF   []byte
}

// Splitter produces the ordered unit sequence for a source document.
type Splitter interface {
	Split(ctx context.Context, pdfPath string) ([]Unit, error)
}

// Config holds the external tool paths and chunking target.
type Config struct {
	PdfseparateBin string
	PdftotextBin   string
	ChunkSize      int
}

// minTextLen rejects PDFs whose text layer is effectively empty; scanned
// image-only documents are unsupported and must fail the job up front.
const minTextLen = 100

// PageSplitter emits one unit per physical page via pdfseparate, with each
// page's own text layer attached via pdftotext.
type PageSplitter struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewPageSplitter(cfg Config, runner Runner, logger *slog.Logger) *PageSplitter {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	return &PageSplitter{cfg: cfg, runner: runner, logger: logger}
}

func (s *PageSplitter) Split(ctx context.Context, pdfPath string) ([]Unit, error) {
	tmpDir, err := os.MkdirTemp("", "nutridb-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			s.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	// pdfseparate <in.pdf> <tmp/page-%d.pdf>
	pattern := filepath.Join(tmpDir, "page-%d.pdf")
	if _, errb, err := s.runner.Run(ctx, s.cfg.PdfseparateBin, pdfPath, pattern); err != nil {
		return nil, fmt.Errorf("pdfseparate: %w: %s", err, truncate(string(errb), 1<<10))
	}

	matches, _ := filepath.Glob(filepath.Join(tmpDir, "page-*.pdf"))
	pages, err := sortByPageNumber(matches)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: %w", pdfPath, ErrNoUnits)
	}

	units := make([]Unit, 0, len(pages))
	for i, p := range pages {
		blob, err := os.ReadFile(p.path)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", p.number, err)
		}
		// Text layer is best-effort per page; a vector-only page simply
		// yields an empty string and the oracle works from the blob.
		text, _, terr := s.runner.Run(ctx, s.cfg.PdftotextBin, "-layout", "-enc", "UTF-8", "-eol", "unix", p.path, "-")
		if terr != nil {
			s.logger.Warn("pdftotext failed for page", "page", p.number, "error", terr)
		}
		units = append(units, Unit{Index: i, Page: p.number, Text: string(text), PDF: blob})
	}

	s.logger.Debug("split pdf into pages", "path", pdfPath, "pages", len(units))
	return units, nil
}

type pageFile struct {
	path   string
	number int
}

// sortByPageNumber orders pdfseparate output numerically; its filenames are
// not zero-padded, so a lexical sort would put page-10 before page-2.
func sortByPageNumber(paths []string) ([]pageFile, error) {
	pages := make([]pageFile, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		numStr := strings.TrimSuffix(strings.TrimPrefix(base, "page-"), ".pdf")
		n, err := strconv.Atoi(numStr)
		if err != nil {
			return nil, fmt.Errorf("unexpected page filename %q: %w", base, err)
		}
		pages = append(pages, pageFile{path: p, number: n})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })
	return pages, nil
}

// TextSplitter extracts the document's full text layer and partitions it
// into length-bounded chunks.
type TextSplitter struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTextSplitter(cfg Config, runner Runner, logger *slog.Logger) *TextSplitter {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	return &TextSplitter{cfg: cfg, runner: runner, logger: logger}
}

func (s *TextSplitter) Split(ctx context.Context, pdfPath string) ([]Unit, error) {
	out, errb, err := s.runner.Run(ctx, s.cfg.PdftotextBin, "-layout", "-enc", "UTF-8", "-eol", "unix", pdfPath, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 1<<10))
	}
	text := string(out)
	if len(strings.TrimSpace(text)) < minTextLen {
		return nil, fmt.Errorf("pdf appears to be scanned or image-based (no usable text layer): %w", ErrNoUnits)
	}

	chunks := ChunkText(text, s.cfg.ChunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", pdfPath, ErrNoUnits)
	}

	units := make([]Unit, len(chunks))
	for i, c := range chunks {
		units[i] = Unit{Index: i, Text: c}
	}
	s.logger.Debug("split pdf text into chunks", "path", pdfPath, "chunks", len(units), "text_len", len(text))
	return units, nil
}
