package ai

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/zhouzirui/z-tavern/chatcli/internal/model/chat"
)

// ErrInvalidHistory is returned when a query history does not start with the system message.
var ErrInvalidHistory = errors.New("history must start with the system message")

// Gateway sends the conversation to a completion endpoint.
type Gateway interface {
	Query(ctx context.Context, history []chat.Message) (Result, error)
}

// Result is either Complete or Streamed.
type Result interface {
	isResult()
}

// Complete carries a reply that arrived in one piece.
type Complete struct {
	Text string
}

// Streamed carries a reply that arrives as fragments.
type Streamed struct {
	Fragments FragmentStream
}

func (Complete) isResult() {}
func (Streamed) isResult() {}

// FragmentStream yields reply fragments in arrival order. Recv returns io.EOF once the
// reply is complete. A stream cannot be restarted.
type FragmentStream interface {
	Recv() (string, error)
	Close()
}

// GatewayError describes a failed completion call.
type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func gatewayError(provider string, err error, msg string) error {
	return &GatewayError{Provider: provider, Err: errors.Wrap(err, msg)}
}

func validateHistory(history []chat.Message) error {
	if len(history) == 0 || history[0].Role != chat.RoleSystem {
		return ErrInvalidHistory
	}
	return nil
}

// sliceStream replays a fixed list of fragments.
type sliceStream struct {
	fragments []string
	pos       int
}

// NewFragmentStream returns a stream over the given fragments.
func NewFragmentStream(fragments ...string) FragmentStream {
	return &sliceStream{fragments: fragments}
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	fragment := s.fragments[s.pos]
	s.pos++
	return fragment, nil
}

func (s *sliceStream) Close() {
	s.pos = len(s.fragments)
}
