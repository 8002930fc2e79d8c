package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	t.Run("parses key=value pairs", func(t *testing.T) {
		filter, err := parseFilters([]string{"make=BMW", "model=M5"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"make": "bmw", "model": "m5"}, filter)
	})

	t.Run("keeps equals signs in values", func(t *testing.T) {
		filter, err := parseFilters([]string{"title=a=b"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"title": "a=b"}, filter)
	})

	t.Run("nil for no pairs", func(t *testing.T) {
		filter, err := parseFilters(nil)
		require.NoError(t, err)
		assert.Nil(t, filter)
	})

	t.Run("rejects malformed pairs", func(t *testing.T) {
		_, err := parseFilters([]string{"no-separator"})
		assert.Error(t, err)

		_, err = parseFilters([]string{"=value"})
		assert.Error(t, err)
	})
}
