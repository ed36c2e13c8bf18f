package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateFetching, true},
		{StateFetching, StateNormalizing, true},
		{StateNormalizing, StateValidating, true},
		{StateValidating, StateCheckingIntegrity, true},
		{StateCheckingIntegrity, StateDone, true},
		{StateFetching, StateAborted, true},
		{StateNormalizing, StateAborted, true},
		{StateValidating, StateAborted, true},

		{StateIdle, StateValidating, false},
		{StateCheckingIntegrity, StateAborted, false},
		{StateIdle, StateAborted, false},
		{StateDone, StateFetching, false},
		{StateAborted, StateDone, false},
		{StateValidating, StateFetching, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateAborted.IsTerminal())
	assert.False(t, StateCheckingIntegrity.IsTerminal())
	assert.False(t, StateIdle.IsTerminal())
}
