package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type anthropicBackend struct {
	model     string
	apiKey    string
	baseURL   string
	maxTokens int
	httpc     *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Error   *apiError        `json:"error,omitempty"`
}

// complete issues a single-turn message completion. The answer is the
// in-order concatenation of all returned text blocks.
func (b *anthropicBackend) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	request := anthropicRequest{
		Model:       b.model,
		MaxTokens:   b.maxTokens,
		Temperature: temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := b.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("Anthropic request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %v", err)
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("Anthropic returned status %d: %s", resp.StatusCode, truncateBody(body))
		}
		return "", fmt.Errorf("decode response: %v", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("Anthropic API error: %s (type: %s)", response.Error.Message, response.Error.Type)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("Anthropic returned status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parts []string
	for _, block := range response.Content {
		if block.Type == "" || block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
