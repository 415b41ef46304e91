package idgen

import (
	"regexp"
	"testing"

	"brain2-canvas/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	pattern := regexp.MustCompile(`^whl-[a-zA-Z0-9]{12}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id, err := New(domain.KindWheel)
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestEnsure(t *testing.T) {
	id := "dot-fixed"
	require.NoError(t, Ensure(domain.KindDot, &id))
	assert.Equal(t, "dot-fixed", id)

	var empty string
	require.NoError(t, Ensure(domain.KindChakra, &empty))
	assert.Contains(t, empty, "chk-")
}
