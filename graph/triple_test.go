package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usesMalware = Triple{"intrusion-set", "uses", "malware"}
	usesTool    = Triple{"intrusion-set", "uses", "tool"}
	mitigates   = Triple{"course-of-action", "mitigates", "attack-pattern"}
)

func TestTripleKeyRoundTrip(t *testing.T) {
	got, err := ParseTripleKey(usesMalware.Key())
	require.NoError(t, err)
	assert.Equal(t, usesMalware, got)

	for _, bad := range []string{"", "a|b", "a||c", "a|b|c|d"} {
		_, err := ParseTripleKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestTripleString(t *testing.T) {
	assert.Equal(t, "intrusion-set -[uses]-> malware", usesMalware.String())
}

func TestTripleSetIsImmutable(t *testing.T) {
	base := NewTripleSet(usesMalware).WithVersion("v1")
	extended := base.Union(usesTool, usesMalware)

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, extended.Len())
	assert.True(t, extended.Contains(usesTool))
	assert.False(t, base.Contains(usesTool))
	assert.Equal(t, "v1", extended.Version())
}

func TestTripleSetSortedAndMissing(t *testing.T) {
	set := NewTripleSet(usesTool, mitigates, usesMalware)
	assert.Equal(t, []Triple{mitigates, usesMalware, usesTool}, set.Sorted())

	allow := NewTripleSet(usesMalware)
	missing := allow.Missing([]Triple{usesTool, usesMalware, mitigates, usesTool})
	assert.Equal(t, []Triple{mitigates, usesTool}, missing)

	var empty TripleSet
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.Contains(usesTool))
	assert.Empty(t, empty.Sorted())
}
