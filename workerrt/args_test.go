package workerrt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/workerrt"
)

func TestParseSelfArgs(t *testing.T) {
	args := []string{"--render-mode=fast", "--slave-id=42", "--slave-alias=render-1", "--slave-title=renderer", "input.png"}

	id, alias, title, rest, err := workerrt.ParseSelfArgs(args)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, "render-1", alias)
	assert.Equal(t, "renderer", title)
	assert.Equal(t, []string{"--render-mode=fast", "input.png"}, rest)
}

func TestParseSelfArgsMissingID(t *testing.T) {
	_, _, _, _, err := workerrt.ParseSelfArgs([]string{"--slave-alias=a"})
	assert.Error(t, err)
}

func TestParseSelfArgsMissingAlias(t *testing.T) {
	_, _, _, _, err := workerrt.ParseSelfArgs([]string{"--slave-id=1"})
	assert.Error(t, err)
}

func TestParseSelfArgsInvalidID(t *testing.T) {
	_, _, _, _, err := workerrt.ParseSelfArgs([]string{"--slave-id=abc", "--slave-alias=a"})
	assert.Error(t, err)
}

func TestParseSelfArgsOptionalTitle(t *testing.T) {
	id, alias, title, rest, err := workerrt.ParseSelfArgs([]string{"--slave-id=1", "--slave-alias=a"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, "a", alias)
	assert.Equal(t, "", title)
	assert.Empty(t, rest)
}
