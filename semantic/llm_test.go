package semantic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// fakeModel replays canned answers and records every call.
type fakeModel struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	calls   [][]llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.calls)
	m.calls = append(m.calls, messages)

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	answer := ""
	if i < len(m.answers) {
		answer = m.answers[i]
	} else if len(m.answers) > 0 {
		answer = m.answers[len(m.answers)-1]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answer}}}, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var usesMalware = graph.Triple{SourceType: "intrusion-set", RelationshipType: "uses", TargetType: "malware"}

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Judgment
		wantErr string
	}{
		{
			name:    "plain JSON",
			content: `{"plausible": true, "confidence": 0.9, "rationale": "groups use malware"}`,
			want:    Judgment{Plausible: true, Confidence: 0.9, Rationale: "groups use malware"},
		},
		{
			name:    "fenced JSON",
			content: "```json\n{\"plausible\": false, \"confidence\": 0.2}\n```",
			want:    Judgment{Plausible: false, Confidence: 0.2},
		},
		{
			name:    "surrounding prose",
			content: "Sure. {\"plausible\": true, \"confidence\": 1} Hope that helps.",
			want:    Judgment{Plausible: true, Confidence: 1},
		},
		{name: "no object", content: "I think so", wantErr: "no JSON object"},
		{name: "bad JSON", content: "{plausible: yes}", wantErr: "failed to unmarshal"},
		{name: "missing plausible", content: `{"confidence": 0.5}`, wantErr: "missing 'plausible'"},
		{name: "missing confidence", content: `{"plausible": true}`, wantErr: "missing 'confidence'"},
		{name: "confidence too high", content: `{"plausible": true, "confidence": 1.5}`, wantErr: "outside [0,1]"},
		{name: "negative confidence", content: `{"plausible": true, "confidence": -0.1}`, wantErr: "outside [0,1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJudgment(tt.content)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMChecker_Judge(t *testing.T) {
	ctx := context.Background()

	t.Run("first answer parses", func(t *testing.T) {
		model := &fakeModel{answers: []string{`{"plausible": true, "confidence": 0.8, "rationale": "ok"}`}}
		j, err := NewLLMChecker(model).Judge(ctx, usesMalware, "attack")
		require.NoError(t, err)
		assert.True(t, j.Plausible)
		assert.InDelta(t, 0.8, j.Confidence, 1e-9)
		assert.Equal(t, 1, model.callCount())

		prompt := model.calls[0][1].Parts[0].(llms.TextContent).Text
		assert.Contains(t, prompt, "Source: attack")
		assert.Contains(t, prompt, "Source type: intrusion-set")
		assert.Contains(t, prompt, "Relationship type: uses")
		assert.Contains(t, prompt, "Target type: malware")
	})

	t.Run("retries with feedback after bad answer", func(t *testing.T) {
		model := &fakeModel{answers: []string{
			"not json",
			`{"plausible": false, "confidence": 0.1}`,
		}}
		j, err := NewLLMChecker(model, WithBackoff(time.Millisecond)).Judge(ctx, usesMalware, "")
		require.NoError(t, err)
		assert.False(t, j.Plausible)
		assert.Equal(t, 2, model.callCount())

		// system, prompt, bad answer, correction
		assert.Len(t, model.calls[1], 4)
		assert.Equal(t, llms.ChatMessageTypeAI, model.calls[1][2].Role)
	})

	t.Run("retries transport errors", func(t *testing.T) {
		model := &fakeModel{
			errs:    []error{errors.New("rate limited")},
			answers: []string{"", `{"plausible": true, "confidence": 0.5}`},
		}
		_, err := NewLLMChecker(model, WithBackoff(time.Millisecond)).Judge(ctx, usesMalware, "")
		require.NoError(t, err)
		assert.Equal(t, 2, model.callCount())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		model := &fakeModel{answers: []string{"nope"}}
		_, err := NewLLMChecker(model, WithMaxRetries(1), WithBackoff(time.Millisecond)).Judge(ctx, usesMalware, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
		assert.Equal(t, 2, model.callCount())
	})

	t.Run("context cancelled during backoff", func(t *testing.T) {
		model := &fakeModel{answers: []string{"nope"}}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewLLMChecker(model, WithBackoff(time.Hour)).Judge(cctx, usesMalware, "")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, model.callCount())
	})
}

func TestNewModel(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewModel(ModelConfig{Provider: "openai"})
		assert.ErrorIs(t, err, orbit.ErrInvalidConfig)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewModel(ModelConfig{Provider: "mystery", APIKey: "k"})
		assert.ErrorIs(t, err, orbit.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "mystery")
	})

	t.Run("openai", func(t *testing.T) {
		m, err := NewModel(ModelConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini", BaseURL: "http://127.0.0.1:1/v1"})
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("anthropic", func(t *testing.T) {
		m, err := NewModel(ModelConfig{Provider: "anthropic", APIKey: "k", Model: "claude-3-5-haiku-latest"})
		require.NoError(t, err)
		assert.NotNil(t, m)
	})
}

func TestJudgment_Note(t *testing.T) {
	assert.Equal(t, "plausible", Judgment{Plausible: true}.Note())
	assert.Equal(t, "implausible: odd pairing", Judgment{Rationale: "odd pairing"}.Note())
}
