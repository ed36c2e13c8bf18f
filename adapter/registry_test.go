package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njsecure/orbit"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, []string{"attack", "d3fend"}, reg.Names())

	a, err := reg.Get("attack")
	require.NoError(t, err)
	assert.Equal(t, "attack", a.SourceName())
	assert.Equal(t, "attack", a.Profile().Name())

	d, err := reg.Get("d3fend")
	require.NoError(t, err)
	assert.Equal(t, "d3fend", d.SourceName())
}

func TestRegistryUnknownSource(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.Get("capec")
	require.Error(t, err)

	assert.True(t, errors.Is(err, orbit.ErrUnknownSource))
	assert.True(t, errors.Is(err, &orbit.Error{Kind: orbit.KindConfiguration}))
	assert.Contains(t, err.Error(), "unknown source: capec. Available: attack, d3fend")
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Names())

	require.NoError(t, reg.Register(NewAttack()))
	assert.Equal(t, []string{"attack"}, reg.Names())

	err := reg.Register(NewAttack())
	assert.ErrorIs(t, err, orbit.ErrInvalidConfig)

	err = reg.Register(nil)
	assert.ErrorIs(t, err, orbit.ErrInvalidConfig)
}
