package xjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPathDottedLookup(t *testing.T) {
	v := map[string]any{"v": 7.0}
	result, err := ExtractPath(v, "$.v")
	require.NoError(t, err)
	assert.Equal(t, 7.0, result)
}

func TestExtractPathNested(t *testing.T) {
	v := map[string]any{"a": map[string]any{"b": "hi"}}
	result, err := ExtractPath(v, "$.a.b")
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestExtractPathEmptyReturnsInput(t *testing.T) {
	v := map[string]any{"a": 1.0}
	result, err := ExtractPath(v, "")
	require.NoError(t, err)
	assert.Equal(t, v, result)
}

func TestExtractPathMissingResolvesNull(t *testing.T) {
	v := map[string]any{"a": 1.0}
	result, err := ExtractPath(v, "$.missing.deeper")
	require.NoError(t, err)
	assert.Nil(t, result)
}
