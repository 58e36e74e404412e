// Package analyze holds the LLM collaborators: batch risk classification
// and single-post summarization.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Provider is the interface for LLM chat-completion providers.
type Provider interface {
	Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// ChatProvider calls an OpenAI-compatible chat-completions endpoint
// (Groq by default).
type ChatProvider struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	client      *http.Client
}

// NewChatProvider creates a provider for the given endpoint. The API key
// is read from the environment variable named by apiKeyEnv.
func NewChatProvider(model, baseURL, apiKeyEnv string, temperature float64) *ChatProvider {
	return &ChatProvider{
		Model:       model,
		BaseURL:     baseURL,
		APIKey:      os.Getenv(apiKeyEnv),
		Temperature: temperature,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (p *ChatProvider) IsConfigured() bool {
	return p.APIKey != ""
}

// Generate sends a prompt and returns the raw response text.
func (p *ChatProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("LLM API key not configured")
	}

	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":       p.Model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": p.Temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}

	return result.Choices[0].Message.Content, nil
}

// CreateProvider creates the configured LLM provider, or nil when no
// key is available.
func CreateProvider(model, baseURL, apiKeyEnv string, temperature float64) Provider {
	p := NewChatProvider(model, baseURL, apiKeyEnv, temperature)
	if p.IsConfigured() {
		log.Printf("Using LLM provider at %s with model: %s", baseURL, model)
		return p
	}

	log.Printf("No LLM provider available. Set %s to enable analysis.", apiKeyEnv)
	return nil
}
