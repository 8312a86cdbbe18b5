package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/entity"
	"github.com/fastcalorie/nutridb/internal/llm"
)

// ExtractItems implements llm.ItemExtractor against an OpenAI-compatible
// chat/completions endpoint. A unit whose oracle call fails or whose output
// cannot be parsed returns an error; the orchestrator decides what that
// means for the job.
func (c *Client) ExtractItems(ctx context.Context, req llm.ExtractRequest) ([]entity.ExtractedItem, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"restaurant", req.RestaurantName,
		"page", req.PageNumber,
		"text_len", len(req.PageText),
		"has_pdf", len(req.PagePDF) > 0,
		"known_categories", len(req.KnownCategories),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(constants.StandardCategories)},
			{"role": "user", "content": c.userContent(req)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode oracle response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("no choices in oracle response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	c.dumpArtifact(req, rid, content)

	res, err := llm.ParseItemsResponse(content)
	if err != nil {
		c.log.Error("llm.extract.parse_failed",
			"req_id", rid, "error", err, "content_len", len(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("parse oracle output: %w", err)
	}
	if res.Empty {
		c.log.Info("llm.extract.empty_unit",
			"req_id", rid, "page", req.PageNumber,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil
	}

	// Shape check only; data-quality rules run downstream in the
	// validation engine.
	arr, _ := json.Marshal(res.Items)
	if err := llm.ValidateJSONAgainstSchema(llm.BuildItemsJSONSchema(), arr); err != nil {
		c.log.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"page", req.PageNumber,
		"items", len(res.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res.Items, nil
}

// userContent builds the user message: a text part with the unit prompt and
// page text, plus the single-page PDF as a base64 file part when vision is
// enabled.
func (c *Client) userContent(req llm.ExtractRequest) any {
	prompt := llm.BuildUnitPrompt(req.RestaurantName, req.KnownCategories)
	text := prompt
	if strings.TrimSpace(req.PageText) != "" {
		text += "\n\n## Section text\n\n" + req.PageText
	}

	if !c.cfg.Vision || len(req.PagePDF) == 0 {
		return text
	}
	return []map[string]any{
		{
			"type": "file",
			"file": map[string]any{
				"filename":  fmt.Sprintf("page-%d.pdf", req.PageNumber),
				"file_data": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(req.PagePDF),
			},
		},
		{"type": "text", "text": text},
	}
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("oracle response body close error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("oracle status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), nil
}

var artifactNameRe = regexp.MustCompile(`[^a-z0-9]+`)

// dumpArtifact writes the raw response text for offline diagnosis.
func (c *Client) dumpArtifact(req llm.ExtractRequest, rid, content string) {
	if c.cfg.ArtifactDir == "" {
		return
	}
	slug := artifactNameRe.ReplaceAllString(strings.ToLower(req.RestaurantName), "-")
	name := fmt.Sprintf("%s-p%d-%s.txt", slug, req.PageNumber, rid)
	path := filepath.Join(c.cfg.ArtifactDir, name)
	if err := os.MkdirAll(c.cfg.ArtifactDir, 0o755); err != nil {
		c.log.Warn("llm.artifact.mkdir_failed", "dir", c.cfg.ArtifactDir, "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		c.log.Warn("llm.artifact.write_failed", "path", path, "error", err)
	}
}
