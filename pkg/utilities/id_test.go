package utilities

import (
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKSUID(t *testing.T) {
	id := NewKSUID()
	_, err := ksuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewKSUID())
}

func TestNewSnowflakeIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewSnowflakeID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNodeFromEnv(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "")
	assert.Equal(t, int64(1), NodeFromEnv())
	t.Setenv("SNOWFLAKE_NODE", "7")
	assert.Equal(t, int64(7), NodeFromEnv())
	t.Setenv("SNOWFLAKE_NODE", "x")
	assert.Equal(t, int64(1), NodeFromEnv())
}

func TestNewSnowflakeIDWithBadNodeFallsBack(t *testing.T) {
	id := NewSnowflakeIDWithNode(-1)
	_, err := ksuid.Parse(id)
	assert.NoError(t, err)
}
