package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/zhouzirui/z-tavern/chatcli/internal/config"
	"github.com/zhouzirui/z-tavern/chatcli/internal/model/chat"
)

// Logger writes one transcript file per run.
type Logger struct {
	fs  afero.Fs
	cfg config.SessionConfig
}

// NewLogger creates a logger writing into cfg.LogDir on fs.
func NewLogger(fs afero.Fs, cfg config.SessionConfig) *Logger {
	return &Logger{fs: fs, cfg: cfg}
}

// Save writes the header and history to the first unused numbered file and returns its path.
func (l *Logger) Save(history []chat.Message) (string, error) {
	if err := l.fs.MkdirAll(l.cfg.LogDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create log directory %s", l.cfg.LogDir)
	}

	path, err := l.nextPath()
	if err != nil {
		return "", err
	}

	if err := afero.WriteFile(l.fs, path, []byte(l.format(history)), 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write transcript %s", path)
	}

	log.Info().Str("path", path).Int("messages", len(history)).Msg("transcript saved")
	return path, nil
}

// nextPath probes index 0, 1, 2, ... and returns the first name that does not exist.
// A deleted file leaves a gap that is reused by the next run.
func (l *Logger) nextPath() (string, error) {
	for index := 0; ; index++ {
		path := filepath.Join(l.cfg.LogDir, fmt.Sprintf(l.cfg.LogFileTemplate, index))
		_, err := l.fs.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", errors.Wrapf(err, "failed to probe %s", path)
		}
	}
}

func (l *Logger) format(history []chat.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Model:             %s\n", l.cfg.Model)
	fmt.Fprintf(&b, "Max Tokens:        %d\n", l.cfg.MaxTokens)
	fmt.Fprintf(&b, "Temperature:       %g\n", l.cfg.Temperature)
	fmt.Fprintf(&b, "Streaming Enabled: %t\n", l.cfg.Stream)
	b.WriteString("\n")

	for _, msg := range history {
		if msg.Role == chat.RoleSystem && !l.cfg.IncludeSystem {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", msg.Role, msg.Content)
	}
	return b.String()
}
