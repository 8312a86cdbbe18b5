package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config controls the chat/completions extraction client. BaseURL may point
// at any OpenAI-compatible endpoint.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	// Vision attaches the unit's single-page PDF blob as a file part in
	// addition to its text layer. Text-only otherwise.
	Vision bool
	// ArtifactDir, when set, receives a dump of each raw oracle response
	// for offline diagnosis. Best-effort; failures only log.
	ArtifactDir string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
