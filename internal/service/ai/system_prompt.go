package ai

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DefaultSystemPrompt is used when no prompt file can be read.
const DefaultSystemPrompt = "You are an intelligent assistant. You always provide well-reasoned answers that are both correct and helpful."

// ResolveSystemPrompt returns the contents of path verbatim, trailing whitespace included.
// When path is empty the default is returned without error. When the file cannot be read
// the default is returned together with the read error so the caller can report it.
func ResolveSystemPrompt(fs afero.Fs, path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return DefaultSystemPrompt, errors.Wrapf(err, "failed to load system prompt from %s", path)
	}
	return string(data), nil
}
