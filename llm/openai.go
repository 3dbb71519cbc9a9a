package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openAIBaseURL = "https://api.openai.com"

type openAIBackend struct {
	model   string
	apiKey  string
	baseURL string
	httpc   *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// complete issues a single-turn chat completion: one user message carrying
// the rendered prompt. The answer is the first choice's message content.
func (b *openAIBackend) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	request := openAIRequest{
		Model:       b.model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %v", err)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("OpenAI returned status %d: %s", resp.StatusCode, truncateBody(body))
		}
		return "", fmt.Errorf("decode response: %v", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("OpenAI returned status %d: %s", resp.StatusCode, truncateBody(body))
	}

	if len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Message.Content, nil
}
