package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastcalorie/nutridb/internal/llm"
)

func completionResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

type capturedRequest struct {
	auth string
	body map[string]any
}

func newStubServer(t *testing.T, status int, responseBody string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		captured.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.WriteHeader(status)
		fmt.Fprint(w, responseBody)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testRequest() llm.ExtractRequest {
	return llm.ExtractRequest{
		RestaurantName:  "Testaurant",
		PageNumber:      3,
		PageText:        "Fries ... 320 cal ... 260mg sodium",
		KnownCategories: []string{"Burgers"},
	}
}

func TestExtractItemsHappyPath(t *testing.T) {
	srv, captured := newStubServer(t, http.StatusOK, completionResponse(
		`[{"name": "Fries", "category": "Sides", "calories": 320, "sodiumMg": 260, "confidence": "high"}]`))

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test"}, nil)

	items, err := c.ExtractItems(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Fries", items[0].Name)
	require.NotNil(t, items[0].Calories)
	assert.Equal(t, 320, *items[0].Calories)

	assert.Equal(t, "Bearer sk-test", captured.auth)
	assert.Equal(t, "test-model", captured.body["model"])

	messages := captured.body["messages"].([]any)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	content, ok := user["content"].(string)
	require.True(t, ok, "text-only mode sends a plain string")
	assert.Contains(t, content, "Testaurant")
	assert.Contains(t, content, "Burgers")
	assert.Contains(t, content, "Fries ... 320 cal")
}

func TestExtractItemsEmptyPage(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusOK, completionResponse("[]"))
	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test"}, nil)

	items, err := c.ExtractItems(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestExtractItemsHTTPError(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusTooManyRequests, `{"error": {"message": "rate limit"}}`)
	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test"}, nil)

	_, err := c.ExtractItems(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestExtractItemsParseFailure(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusOK, completionResponse("I can't help with that."))
	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test"}, nil)

	_, err := c.ExtractItems(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrNoJSONArray)
}

func TestExtractItemsNoChoices(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusOK, `{"choices": []}`)
	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test"}, nil)

	_, err := c.ExtractItems(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestExtractItemsSchemaRejection(t *testing.T) {
	// Parses as an item array but fails the shape check: confidence is
	// mandatory.
	srv, _ := newStubServer(t, http.StatusOK, completionResponse(
		`[{"name": "Fries", "category": "Sides"}]`))
	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test"}, nil)

	_, err := c.ExtractItems(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}

func TestExtractItemsVisionAttachesPDF(t *testing.T) {
	srv, captured := newStubServer(t, http.StatusOK, completionResponse(
		`[{"name": "Fries", "category": "Sides", "confidence": "high"}]`))
	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test", Vision: true}, nil)

	req := testRequest()
	req.PagePDF = []byte("%PDF-1.7 fake page")
	_, err := c.ExtractItems(context.Background(), req)
	require.NoError(t, err)

	messages := captured.body["messages"].([]any)
	user := messages[1].(map[string]any)
	parts, ok := user["content"].([]any)
	require.True(t, ok, "vision mode sends content parts")
	require.Len(t, parts, 2)

	filePart := parts[0].(map[string]any)
	assert.Equal(t, "file", filePart["type"])
	fileData := filePart["file"].(map[string]any)["file_data"].(string)
	assert.True(t, strings.HasPrefix(fileData, "data:application/pdf;base64,"))
	assert.Equal(t, "page-3.pdf", filePart["file"].(map[string]any)["filename"])
}

func TestExtractItemsDumpsArtifact(t *testing.T) {
	dir := t.TempDir()
	srv, _ := newStubServer(t, http.StatusOK, completionResponse(
		`[{"name": "Fries", "category": "Sides", "confidence": "high"}]`))
	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test", ArtifactDir: dir}, nil)

	_, err := c.ExtractItems(context.Background(), testRequest())
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "testaurant-p3-*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Fries"`)
}
