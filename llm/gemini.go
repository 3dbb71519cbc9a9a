package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

type geminiBackend struct {
	model   string
	apiKey  string
	baseURL string
	httpc   *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// complete issues a free-form generateContent call. Unlike the other two
// backends this vendor takes the temperature in generationConfig rather
// than as a top-level field; it is forwarded, not dropped. The answer is
// the first candidate's text parts joined in order.
func (b *geminiBackend) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	request := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{Temperature: temperature},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %v", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		b.baseURL, b.model, url.QueryEscape(b.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("Gemini request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %v", err)
	}

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("Gemini returned status %d: %s", resp.StatusCode, truncateBody(body))
		}
		return "", fmt.Errorf("decode response: %v", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s (status: %s)", response.Error.Message, response.Error.Status)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("Gemini returned status %d: %s", resp.StatusCode, truncateBody(body))
	}

	if len(response.Candidates) == 0 {
		return "", nil
	}
	var parts []string
	for _, p := range response.Candidates[0].Content.Parts {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, ""), nil
}
