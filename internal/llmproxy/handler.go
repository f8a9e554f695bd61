package llmproxy

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nacho7823/voiceAsisstant/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodySize    = 10 * 1024 * 1024
)

type Config struct {
	// UpstreamURL is the real chat-completions endpoint, e.g. the OpenAI
	// API or a local vLLM server. Never this service itself.
	UpstreamURL string
	// APIKey is injected server-side so the browser never holds it.
	APIKey  string
	Timeout time.Duration
}

// Handler forwards chat-completion requests from the browser to the real LLM
// API, adding the secret API key on the way through. Upstream status and body
// are relayed unchanged so clients see the provider's own error payloads.
type Handler struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewHandler(cfg Config, logger *slog.Logger) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("handler", "llmproxy"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat/completions", h.HandleChatCompletions)
}

func (h *Handler) HandleChatCompletions(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return shared.BadRequest("invalid_body", "cannot read request body")
	}

	req, err := http.NewRequestWithContext(
		c.Request().Context(),
		http.MethodPost,
		h.cfg.UpstreamURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return shared.InternalError("proxy_failed", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("upstream call failed", "upstream", h.cfg.UpstreamURL, "error", err)
		return shared.InternalError("proxy_failed", "upstream LLM request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.InternalError("proxy_failed", "reading upstream response failed")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}

	h.logger.Debug("chat completion relayed", "status", resp.StatusCode, "bytes", len(respBody))
	return c.Blob(resp.StatusCode, contentType, respBody)
}
