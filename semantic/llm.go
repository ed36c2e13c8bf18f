package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// Generator is the part of a langchaingo model the checker uses.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ModelConfig selects a language model.
type ModelConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string

	// Model is the model name, e.g. "gpt-4o-mini".
	Model string

	APIKey string

	// BaseURL overrides the provider endpoint, for compatible gateways.
	BaseURL string
}

// NewModel creates a langchaingo model for cfg.
func NewModel(cfg ModelConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, orbit.NewConfigurationError("semantic.NewModel",
			fmt.Errorf("%w: %s API key is required", orbit.ErrInvalidConfig, cfg.Provider))
	}

	switch cfg.Provider {
	case "", "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	default:
		return nil, orbit.NewConfigurationError("semantic.NewModel",
			fmt.Errorf("%w: unknown LLM provider %q", orbit.ErrInvalidConfig, cfg.Provider))
	}
}

const systemPrompt = `You review relationship types in a cyber threat-intelligence knowledge graph.
Given a source node type, a relationship type and a target node type, decide whether the relationship is semantically plausible.

You must respond with valid JSON in the following format:
{"plausible": <true|false>, "confidence": <float between 0.0 and 1.0>, "rationale": "<one sentence>"}`

// LLMChecker asks a language model to judge triples.
type LLMChecker struct {
	model       Generator
	maxRetries  int
	temperature float64
	backoff     time.Duration
}

// LLMOption configures an LLMChecker.
type LLMOption func(*LLMChecker)

// WithMaxRetries sets how often an unparsable answer or failed call is retried.
func WithMaxRetries(n int) LLMOption {
	return func(c *LLMChecker) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay between retries. It doubles each attempt.
func WithBackoff(d time.Duration) LLMOption {
	return func(c *LLMChecker) {
		c.backoff = d
	}
}

// NewLLMChecker creates a checker backed by model. Temperature is fixed at 0.
func NewLLMChecker(model Generator, opts ...LLMOption) *LLMChecker {
	c := &LLMChecker{
		model:      model,
		maxRetries: 2,
		backoff:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Judge asks the model about triple, retrying with feedback when the answer
// is not the expected JSON.
func (c *LLMChecker) Judge(ctx context.Context, triple graph.Triple, source string) (Judgment, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(triple, source)),
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Judgment{}, ctx.Err()
			}
		}

		resp, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
		if err != nil {
			lastErr = fmt.Errorf("completion failed (attempt %d/%d): %w", attempt+1, c.maxRetries+1, err)
			continue
		}
		if resp == nil || len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty completion (attempt %d/%d)", attempt+1, c.maxRetries+1)
			continue
		}

		content := resp.Choices[0].Content
		j, err := parseJudgment(content)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse response (attempt %d/%d): %w", attempt+1, c.maxRetries+1, err)
			messages = append(messages,
				llms.TextParts(llms.ChatMessageTypeAI, content),
				llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(
					"Invalid JSON format. Error: %v\nPlease respond with valid JSON: {\"plausible\": <true|false>, \"confidence\": <0.0-1.0>, \"rationale\": \"<explanation>\"}", err)),
			)
			continue
		}
		return j, nil
	}

	return Judgment{}, fmt.Errorf("judging %s failed after %d attempts: %w", triple, c.maxRetries+1, lastErr)
}

func buildPrompt(t graph.Triple, source string) string {
	var sb strings.Builder
	if source != "" {
		fmt.Fprintf(&sb, "Source: %s\n", source)
	}
	fmt.Fprintf(&sb, "Source type: %s\n", t.SourceType)
	fmt.Fprintf(&sb, "Relationship type: %s\n", t.RelationshipType)
	fmt.Fprintf(&sb, "Target type: %s\n\n", t.TargetType)
	sb.WriteString("Is this relationship plausible? Respond with JSON only.")
	return sb.String()
}

// parseJudgment extracts the JSON object from a model answer, tolerating
// markdown fences and surrounding prose.
func parseJudgment(content string) (Judgment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return Judgment{}, fmt.Errorf("no JSON object found in response: %s", content)
	}

	var raw struct {
		Plausible  *bool    `json:"plausible"`
		Confidence *float64 `json:"confidence"`
		Rationale  string   `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Judgment{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if raw.Plausible == nil {
		return Judgment{}, fmt.Errorf("missing 'plausible' field in response")
	}
	if raw.Confidence == nil {
		return Judgment{}, fmt.Errorf("missing 'confidence' field in response")
	}

	j := Judgment{Plausible: *raw.Plausible, Confidence: *raw.Confidence, Rationale: raw.Rationale}
	if err := j.Validate(); err != nil {
		return Judgment{}, err
	}
	return j, nil
}
