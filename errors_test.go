package orbit

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSentinelErrors verifies that all sentinel errors are defined correctly.
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "ErrUnknownSource", err: ErrUnknownSource, want: "unknown source"},
		{name: "ErrSourceUnavailable", err: ErrSourceUnavailable, want: "source unavailable"},
		{name: "ErrMalformedSource", err: ErrMalformedSource, want: "malformed source"},
		{name: "ErrInvalidConfig", err: ErrInvalidConfig, want: "invalid configuration"},
		{name: "ErrStoreFailed", err: ErrStoreFailed, want: "store operation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("sentinel error %s is nil", tt.name)
			}
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("error message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "basic error",
			err:  &Error{Op: "Pipeline.Run", Kind: KindConfiguration, Err: ErrUnknownSource},
			want: "orbit: Pipeline.Run (configuration): unknown source",
		},
		{
			name: "error with context",
			err: &Error{
				Op:      "attack.Fetch",
				Kind:    KindSourceUnavailable,
				Err:     ErrSourceUnavailable,
				Context: map[string]any{"location": "/tmp/missing.json"},
			},
			want: "orbit: attack.Fetch (source_unavailable): source unavailable [context:",
		},
		{
			name: "error without underlying error",
			err:  &Error{Op: "Config.Validate", Kind: KindConfiguration},
			want: "orbit: Config.Validate: configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if !strings.Contains(got, tt.want) {
				t.Errorf("Error() = %q, want to contain %q", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "matches underlying sentinel",
			err:    &Error{Op: "attack.Fetch", Kind: KindSourceUnavailable, Err: ErrSourceUnavailable},
			target: ErrSourceUnavailable,
			want:   true,
		},
		{
			name:   "matches by kind",
			err:    &Error{Op: "attack.Normalize", Kind: KindMalformedSource, Err: ErrMalformedSource},
			target: &Error{Kind: KindMalformedSource},
			want:   true,
		},
		{
			name:   "matches by kind and op",
			err:    &Error{Op: "attack.Normalize", Kind: KindMalformedSource, Err: ErrMalformedSource},
			target: &Error{Op: "attack.Normalize", Kind: KindMalformedSource},
			want:   true,
		},
		{
			name:   "different op does not match",
			err:    &Error{Op: "attack.Normalize", Kind: KindMalformedSource, Err: ErrMalformedSource},
			target: &Error{Op: "d3fend.Normalize", Kind: KindMalformedSource},
			want:   false,
		},
		{
			name:   "different kind does not match",
			err:    &Error{Op: "attack.Fetch", Kind: KindSourceUnavailable, Err: ErrSourceUnavailable},
			target: &Error{Kind: KindMalformedSource},
			want:   false,
		},
		{
			name:   "nil target",
			err:    &Error{Op: "attack.Fetch", Kind: KindSourceUnavailable},
			target: nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestConstructorsWrapSentinels(t *testing.T) {
	cause := errors.New("open /data/attack.json: no such file or directory")

	err := NewSourceUnavailableError("attack.Fetch", cause)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindSourceUnavailable, err.Kind)

	err = NewMalformedSourceError("attack.Normalize", nil)
	assert.ErrorIs(t, err, ErrMalformedSource)

	err = NewStorageError("RedisStore.Add", fmt.Errorf("dial: %w", cause))
	assert.ErrorIs(t, err, ErrStoreFailed)
	assert.ErrorIs(t, err, cause)

	// Already-wrapped sentinels are not wrapped twice.
	err = NewSourceUnavailableError("attack.Fetch", fmt.Errorf("timeout: %w", ErrSourceUnavailable))
	assert.Equal(t, "orbit: attack.Fetch (source_unavailable): timeout: source unavailable", err.Error())

	cfg := NewConfigurationError("Registry.Get", ErrUnknownSource)
	assert.ErrorIs(t, cfg, ErrUnknownSource)
}

func TestErrorWithContext(t *testing.T) {
	original := &Error{
		Op:      "Pipeline.Run",
		Kind:    KindSourceUnavailable,
		Err:     ErrSourceUnavailable,
		Context: map[string]any{"source": "attack"},
	}

	extended := original.WithContext(map[string]any{"location": "bundle.json"})

	assert.Equal(t, "attack", extended.Context["source"])
	assert.Equal(t, "bundle.json", extended.Context["location"])
	assert.NotContains(t, original.Context, "location", "original must not be mutated")
}
