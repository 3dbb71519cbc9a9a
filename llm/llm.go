// Package llm dispatches single-turn completion requests to one of three
// hosted providers (OpenAI, Anthropic, Gemini) behind a single Complete
// operation. Each provider is a separate backend with its own request and
// response shapes; adding a vendor means adding one backend file.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Marianoooo45/ocr-qcm-ctk/prompts"
)

const (
	ProviderOpenAI    = "OpenAI"
	ProviderAnthropic = "Anthropic"
	ProviderGemini    = "Gemini"
)

// DefaultMaxTokens caps Anthropic output when Config.MaxTokens is zero.
const DefaultMaxTokens = 800

var (
	// ErrUnsupportedProvider: the provider name matches no known backend.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrProviderUnavailable: the backend cannot be constructed because its
	// endpoint is unusable. Surfaced at construction, not call time, so
	// callers can tell "missing dependency" from "call failed".
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidPromptTemplate: the template does not carry exactly one
	// {text} placeholder. A caller error, no best-effort substitution.
	ErrInvalidPromptTemplate = errors.New("invalid prompt template")
	// ErrCompletionFailed wraps every transport or vendor-side failure.
	// The caller's only recourse is showing the message and retrying.
	ErrCompletionFailed = errors.New("completion failed")
)

type Config struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the vendor endpoint (tests, proxies). Empty uses
	// the vendor default.
	BaseURL string
	// MaxTokens bounds Anthropic output. Zero means DefaultMaxTokens.
	MaxTokens  int
	HTTPClient *http.Client
}

type backend interface {
	complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Client is an immutable-per-construction completion client. The interactive
// shell rebuilds one whenever provider, model or key change.
type Client struct {
	provider string
	model    string
	backend  backend
}

func New(cfg Config) (*Client, error) {
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var (
		b          backend
		defaultURL string
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		defaultURL = openAIBaseURL
	case ProviderAnthropic:
		defaultURL = anthropicBaseURL
	case ProviderGemini:
		defaultURL = geminiBaseURL
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}

	base, err := resolveBaseURL(cfg.BaseURL, defaultURL)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		b = &openAIBackend{model: cfg.Model, apiKey: cfg.APIKey, baseURL: base, httpc: httpc}
	case ProviderAnthropic:
		b = &anthropicBackend{model: cfg.Model, apiKey: cfg.APIKey, baseURL: base, maxTokens: maxTokens, httpc: httpc}
	case ProviderGemini:
		b = &geminiBackend{model: cfg.Model, apiKey: cfg.APIKey, baseURL: base, httpc: httpc}
	}

	return &Client{provider: cfg.Provider, model: cfg.Model, backend: b}, nil
}

func (c *Client) Provider() string { return c.provider }
func (c *Client) Model() string    { return c.model }

// Complete renders the template with inputText and dispatches to the
// provider. The answer comes back trimmed; an empty or missing vendor
// response field yields "", never an error.
func (c *Client) Complete(ctx context.Context, inputText, promptTemplate string, temperature float64) (string, error) {
	prompt, err := RenderPrompt(promptTemplate, inputText)
	if err != nil {
		return "", err
	}
	if temperature < 0 || temperature > 2 {
		return "", fmt.Errorf("temperature %.2f outside [0, 2]", temperature)
	}

	answer, err := c.backend.complete(ctx, prompt, temperature)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	return strings.TrimSpace(answer), nil
}

// RenderPrompt substitutes the {text} placeholder with inputText, verbatim.
// The template must contain the placeholder exactly once.
func RenderPrompt(template, inputText string) (string, error) {
	switch n := strings.Count(template, prompts.Placeholder); {
	case n == 0:
		return "", fmt.Errorf("%w: no %s placeholder", ErrInvalidPromptTemplate, prompts.Placeholder)
	case n > 1:
		return "", fmt.Errorf("%w: %d %s placeholders, want exactly one", ErrInvalidPromptTemplate, n, prompts.Placeholder)
	}
	return strings.Replace(template, prompts.Placeholder, inputText, 1), nil
}

func resolveBaseURL(override, fallback string) (string, error) {
	raw := strings.TrimSpace(override)
	if raw == "" {
		raw = fallback
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: endpoint %q is not usable", ErrProviderUnavailable, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// apiError is the error object vendors embed in JSON responses.
type apiError struct {
	Message string      `json:"message"`
	Type    string      `json:"type,omitempty"`
	Code    interface{} `json:"code,omitempty"` // string or number depending on vendor
}

// truncateBody bounds an error body for display, cutting on a rune boundary
// so multi-byte text is never split mid-sequence.
func truncateBody(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
