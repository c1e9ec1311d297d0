package stream

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-tavern/chatcli/internal/service/ai"
)

type flusher interface {
	Flush() error
}

// Renderer prints gateway replies to the terminal and reduces them to a single string.
type Renderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
}

// Option customises a Renderer.
type Option func(*Renderer) error

// WithMarkdown renders complete replies as markdown for display, wrapped at width columns.
// Streamed replies are always printed raw.
func WithMarkdown(width int) Option {
	return func(r *Renderer) error {
		opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
		if width > 0 {
			opts = append(opts, glamour.WithWordWrap(width))
		}
		md, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			return errors.Wrap(err, "failed to create markdown renderer")
		}
		r.markdown = md
		return nil
	}
}

// New creates a renderer writing to out.
func New(out io.Writer, opts ...Option) (*Renderer, error) {
	r := &Renderer{out: out}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Render prints result and returns the full reply text.
// For a stream, the text accumulated before a failure is returned along with the error.
func (r *Renderer) Render(result ai.Result) (string, error) {
	switch res := result.(type) {
	case ai.Complete:
		return res.Text, r.renderComplete(res.Text)
	case ai.Streamed:
		return r.renderStream(res.Fragments)
	case nil:
		return "", errors.New("no result to render")
	}
	return "", errors.Errorf("unsupported result type %T", result)
}

func (r *Renderer) renderComplete(text string) error {
	display := text + "\n"
	if r.markdown != nil {
		rendered, err := r.markdown.Render(text)
		if err != nil {
			log.Warn().Err(err).Msg("markdown rendering failed, printing raw reply")
		} else {
			display = rendered
		}
	}

	if _, err := io.WriteString(r.out, display); err != nil {
		return errors.Wrap(err, "failed to write reply")
	}
	r.flush()
	return nil
}

func (r *Renderer) renderStream(fragments ai.FragmentStream) (string, error) {
	defer fragments.Close()

	var builder strings.Builder
	count := 0

	for {
		fragment, err := fragments.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(r.out)
			return builder.String(), err
		}

		count++
		if fragment == "" {
			continue
		}

		builder.WriteString(fragment)
		if _, err := io.WriteString(r.out, fragment); err != nil {
			return builder.String(), errors.Wrap(err, "failed to write fragment")
		}
		r.flush()
	}

	fmt.Fprintln(r.out)
	r.flush()

	log.Debug().Int("fragments", count).Int("length", builder.Len()).Msg("stream rendered")
	return builder.String(), nil
}

func (r *Renderer) flush() {
	if f, ok := r.out.(flusher); ok {
		if err := f.Flush(); err != nil {
			log.Warn().Err(err).Msg("failed to flush terminal output")
		}
	}
}
