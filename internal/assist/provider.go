// Package assist drafts and completes email text with a language model.
package assist

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider generates text from a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a Provider.
type Config struct {
	Provider string
	Endpoint string
	Model    string
	Region   string
	Timeout  time.Duration
}

// Default values used when the configuration leaves a field empty.
const (
	DefaultOllamaEndpoint = "http://localhost:11434/api/generate"
	DefaultOllamaModel    = "llama3.2"
	DefaultTimeout        = 30 * time.Second
)

// NewProviderFromConfig creates the Provider named by cfg.Provider.
// An empty provider name disables the assistant and returns (nil, nil).
func NewProviderFromConfig(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "ollama":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultOllamaEndpoint
		}
		model := cfg.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		return NewOllama(endpoint, model, timeout), nil
	case "bedrock":
		return NewBedrock(cfg.Region, cfg.Model, timeout)
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}
