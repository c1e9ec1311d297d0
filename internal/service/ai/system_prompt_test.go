package ai

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSystemPromptReadsFileVerbatim(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "prompt.txt", []byte("You are terse.\n\n  "), 0o644))

	prompt, err := ResolveSystemPrompt(fs, "prompt.txt")
	require.NoError(t, err)
	assert.Equal(t, "You are terse.\n\n  ", prompt)
}

func TestResolveSystemPromptFallsBackWhenMissing(t *testing.T) {
	prompt, err := ResolveSystemPrompt(afero.NewMemMapFs(), "missing.txt")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing.txt")
	assert.Equal(t, DefaultSystemPrompt, prompt)
}

func TestResolveSystemPromptEmptyPathUsesDefault(t *testing.T) {
	prompt, err := ResolveSystemPrompt(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, prompt)
}
