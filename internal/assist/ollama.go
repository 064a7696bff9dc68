package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ollama talks to a local Ollama server.
type Ollama struct {
	Endpoint string
	Model    string

	http *http.Client
}

// NewOllama creates an Ollama provider posting to endpoint.
func NewOllama(endpoint, model string, timeout time.Duration) *Ollama {
	return &Ollama{
		Endpoint: endpoint,
		Model:    model,
		http:     &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Name returns the provider name.
func (o *Ollama) Name() string { return "ollama" }

// Generate sends prompt to Ollama and returns the generated text.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	data, err := json.Marshal(ollamaRequest{Model: o.Model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	var out ollamaResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != "" {
			return "", fmt.Errorf("ollama returned %s: %s", resp.Status, out.Error)
		}
		return "", fmt.Errorf("ollama returned %s", resp.Status)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", decodeErr)
	}
	return strings.TrimSpace(out.Response), nil
}
