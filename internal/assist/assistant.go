package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// FallbackReply is suggested when the provider cannot produce replies.
const FallbackReply = "Thanks for your email. I'll get back to you soon."

// ErrUnavailable is returned when no provider is configured.
var ErrUnavailable = errors.New("assistant is not configured")

// Sentiment is the result of AnalyzeSentiment.
type Sentiment struct {
	Sentiment   string `json:"sentiment"`
	Suggestions string `json:"suggestions,omitempty"`
}

// Assistant turns email tasks into prompts for a Provider.
type Assistant struct {
	provider Provider
	log      *logrus.Entry
}

// New creates an Assistant. provider may be nil, in which case every
// generating call fails with ErrUnavailable and the fallback paths apply.
func New(provider Provider, log *logrus.Entry) *Assistant {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	name := "none"
	if provider != nil {
		name = provider.Name()
	}
	return &Assistant{provider: provider, log: log.WithFields(logrus.Fields{"component": "assist", "provider": name})}
}

// Available reports whether a provider is configured.
func (a *Assistant) Available() bool { return a.provider != nil }

func (a *Assistant) generate(ctx context.Context, op, prompt string) (string, error) {
	if a.provider == nil {
		return "", ErrUnavailable
	}
	out, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		a.log.WithError(err).WithField("op", op).Warn("generation failed")
		return "", fmt.Errorf("failed to %s: %w", op, err)
	}
	a.log.WithField("op", op).Debug("generation complete")
	return out, nil
}

// GenerateEmail writes an email body for subject. brief adds optional
// context and tone defaults to "professional".
func (a *Assistant) GenerateEmail(ctx context.Context, subject, brief, tone string) (string, error) {
	if strings.TrimSpace(tone) == "" {
		tone = "professional"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are an intelligent email assistant that helps users write clear, concise emails. "+
		"Generate an email with a %s tone. The email should be appropriately formatted with greeting, "+
		"body, and sign-off. Keep the email concise and to the point.\n\n", tone)
	fmt.Fprintf(&b, "Write an email with the subject: %q.", subject)
	if brief = strings.TrimSpace(brief); brief != "" {
		fmt.Fprintf(&b, " Context: %s", brief)
	}

	out, err := a.generate(ctx, "generate email", b.String())
	if err != nil {
		return "", err
	}
	if out == "" {
		return "Sorry, I couldn't generate content for this email.", nil
	}
	return out, nil
}

// ReplySuggestions returns up to three one-sentence replies to body.
// It never fails: on any error the canned FallbackReply is returned.
func (a *Assistant) ReplySuggestions(ctx context.Context, body, sender string) []string {
	if sender == "" {
		sender = "someone"
	}
	prompt := "You are an intelligent email assistant. Generate 3 concise reply suggestions for the email below. " +
		"Each suggestion should be different in tone (professional, friendly, brief) and no longer than 1 sentence each. " +
		`Respond with a JSON object with the keys "professional", "friendly" and "brief".` +
		fmt.Sprintf("\n\nThe email is from %s and contains: %q", sender, body)

	out, err := a.generate(ctx, "suggest replies", prompt)
	if err != nil {
		return []string{FallbackReply}
	}
	if s := parseSuggestions(out); len(s) > 0 {
		return s
	}
	return []string{FallbackReply}
}

func parseSuggestions(content string) []string {
	var obj map[string]string
	if err := json.Unmarshal([]byte(extractJSON(content)), &obj); err == nil {
		var out []string
		for _, keys := range [][2]string{
			{"professional", "suggestion1"},
			{"friendly", "suggestion2"},
			{"brief", "suggestion3"},
		} {
			v := obj[keys[0]]
			if v == "" {
				v = obj[keys[1]]
			}
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// extractJSON returns the outermost {...} span of s, or s unchanged.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// CompleteText continues text in the writer's style. Empty input yields
// an empty completion without calling the provider.
func (a *Assistant) CompleteText(ctx context.Context, text, subject string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	prompt := "You are an intelligent email writing assistant. Complete the user's email text " +
		"in a natural way, maintaining their style and tone. Only provide the completion text, not the full email." +
		fmt.Sprintf("\n\nSubject: %s\n\nEmail text so far: %q\n\nComplete this text naturally:", subject, text)
	return a.generate(ctx, "complete text", prompt)
}

// SummarizeThread summarizes an email thread in three to five bullet points.
func (a *Assistant) SummarizeThread(ctx context.Context, thread string) (string, error) {
	prompt := "You are an email assistant that summarizes email threads concisely. " +
		"Create a brief summary (3-5 bullet points) of the key points discussed in the thread." +
		"\n\nSummarize this email thread:\n\n" + thread
	out, err := a.generate(ctx, "summarize thread", prompt)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "Unable to summarize thread.", nil
	}
	return out, nil
}

// AnalyzeSentiment classifies body as positive, neutral or negative.
// Failures degrade to a neutral result.
func (a *Assistant) AnalyzeSentiment(ctx context.Context, body string) Sentiment {
	neutral := Sentiment{Sentiment: "neutral"}
	prompt := "You are an email sentiment analyzer. Analyze the sentiment of the following email " +
		"and provide a simple assessment (positive, neutral, negative) and brief suggestions for response " +
		`if the sentiment is negative. Respond with a JSON object with the keys "sentiment" and "suggestions".` +
		"\n\nAnalyze the sentiment of this email:\n\n" + body

	out, err := a.generate(ctx, "analyze sentiment", prompt)
	if err != nil || out == "" {
		return neutral
	}
	var s Sentiment
	if err := json.Unmarshal([]byte(extractJSON(out)), &s); err != nil {
		return neutral
	}
	if s.Sentiment == "" {
		s.Sentiment = "neutral"
	}
	return s
}
