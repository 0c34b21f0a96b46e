package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	t.Parallel()

	name, err := TableName("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, name)

	name, err = TableName("url_cache_2")
	require.NoError(t, err)
	assert.Equal(t, "url_cache_2", name)

	for _, bad := range []string{"1cache", "cache; DROP TABLE x", "a-b", "\"quoted\""} {
		_, err := TableName(bad)
		assert.Error(t, err, bad)
	}
}
