package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// invoker is the subset of the Bedrock runtime client used here.
type invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock generates text with an Anthropic model on Amazon Bedrock.
type Bedrock struct {
	Region  string
	Model   string
	Timeout time.Duration

	svc invoker
}

// NewBedrock loads the default AWS configuration chain and creates a
// Bedrock provider. region may be empty when the profile defines one.
func NewBedrock(region, model string, timeout time.Duration) (*Bedrock, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("bedrock model is required")
	}
	if detectBedrockFamily(model) != "anthropic" {
		return nil, fmt.Errorf("unsupported bedrock model family for %q", model)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, errors.New("AWS region not resolved: set [assistant] region or AWS_REGION")
	}

	return &Bedrock{
		Region:  cfg.Region,
		Model:   model,
		Timeout: timeout,
		svc:     bedrockruntime.NewFromConfig(cfg),
	}, nil
}

// Name returns the provider name.
func (b *Bedrock) Name() string { return "bedrock" }

// Generate invokes the model with prompt as a single user message.
func (b *Bedrock) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicPayload(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to encode bedrock request: %w", err)
	}

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	modelID := normalizeModelID(b.Model)
	out, err := b.svc.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke %s: %w", modelID, err)
	}
	return parseAnthropicResponse(out.Body)
}

func anthropicPayload(prompt string) map[string]any {
	return map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        1024,
		"temperature":       0.2,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": prompt},
				},
			},
		},
	}
}

func parseAnthropicResponse(body []byte) (string, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode bedrock response: %w", err)
	}
	for _, c := range resp.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			return strings.TrimSpace(c.Text), nil
		}
	}
	return "", errors.New("empty response from bedrock")
}

// normalizeModelID appends the ":0" revision to bare model ids. ARNs and
// inference profiles are passed through.
func normalizeModelID(model string) string {
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "arn:") || strings.Contains(lower, "inference-profile/") {
		return model
	}
	if !strings.Contains(model, ":") {
		return model + ":0"
	}
	return model
}

func detectBedrockFamily(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.Contains(m, "anthropic."):
		return "anthropic"
	case strings.Contains(m, "meta."):
		return "meta"
	case strings.Contains(m, "amazon.titan"):
		return "titan"
	default:
		return ""
	}
}
