package chat

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-tavern/chatcli/internal/config"
	"github.com/zhouzirui/z-tavern/chatcli/internal/model/chat"
	"github.com/zhouzirui/z-tavern/chatcli/internal/model/command"
	"github.com/zhouzirui/z-tavern/chatcli/internal/service/ai"
)

// Console is the terminal the session talks to.
type Console interface {
	ReadInput() (string, error)
	BeginReply()
	EndReply()
	Notice(format string, args ...any)
	Error(format string, args ...any)
	PrintProgramInfo(cfg config.SessionConfig)
	Clear()
}

// Router classifies input lines.
type Router interface {
	Route(input string) command.Command
}

// Renderer prints a gateway result and returns the reply text.
type Renderer interface {
	Render(result ai.Result) (string, error)
}

// TranscriptWriter persists the history at the end of a session.
type TranscriptWriter interface {
	Save(history []chat.Message) (string, error)
}

// Service runs one interactive chat session.
type Service struct {
	cfg        config.SessionConfig
	console    Console
	router     Router
	gateway    ai.Gateway
	renderer   Renderer
	transcript TranscriptWriter

	conversation *chat.Conversation
	machine      *command.Machine
	turns        int
	logger       zerolog.Logger
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Console    Console
	Router     Router
	Gateway    ai.Gateway
	Renderer   Renderer
	Transcript TranscriptWriter
}

// NewService starts a session whose history holds only systemPrompt.
func NewService(cfg config.SessionConfig, systemPrompt string, deps Deps) *Service {
	return &Service{
		cfg:          cfg,
		console:      deps.Console,
		router:       deps.Router,
		gateway:      deps.Gateway,
		renderer:     deps.Renderer,
		transcript:   deps.Transcript,
		conversation: chat.NewConversation(systemPrompt),
		machine:      command.NewMachine(),
		logger:       log.Logger,
	}
}

// WithLogger attaches a logger carrying run-level fields.
func (s *Service) WithLogger(logger zerolog.Logger) *Service {
	s.logger = logger
	return s
}

// Conversation returns the session history.
func (s *Service) Conversation() *chat.Conversation {
	return s.conversation
}

// State returns the run state.
func (s *Service) State() command.RunState {
	return s.machine.State()
}

// Run reads and processes input until exit, end of input or ctx cancellation, then saves
// the transcript and returns its path.
func (s *Service) Run(ctx context.Context) (string, error) {
	s.console.PrintProgramInfo(s.cfg)

	for s.machine.Running() {
		if ctx.Err() != nil {
			s.logger.Info().Msg("session cancelled")
			s.machine.Apply(command.Exit)
			break
		}

		input, err := s.console.ReadInput()
		if errors.Is(err, io.EOF) {
			s.logger.Debug().Msg("end of input")
			s.machine.Apply(command.Exit)
			break
		}
		if err != nil {
			// Cancellation closes stdin to unblock the read; that error is not a failure.
			if ctx.Err() != nil {
				s.logger.Info().Err(err).Msg("session cancelled during read")
			} else {
				s.console.Error("failed to read input: %v", err)
			}
			s.machine.Apply(command.Exit)
			break
		}

		if _, err := s.Step(ctx, input); err != nil {
			return "", err
		}
	}

	return s.save()
}

// Step processes one raw input line and returns the command it was interpreted as.
func (s *Service) Step(ctx context.Context, input string) (command.Command, error) {
	cmd := s.router.Route(input)

	switch cmd {
	case command.Exit:
		s.machine.Apply(cmd)
	case command.ClearTerminal:
		s.console.Clear()
		s.machine.Apply(cmd)
	case command.None:
		if err := s.turn(ctx, input); err != nil {
			return cmd, err
		}
		s.machine.Apply(cmd)
	default:
		panic(fmt.Sprintf("chat: unhandled command %v", cmd))
	}
	return cmd, nil
}

// turn appends the user message, queries the gateway and appends exactly one assistant
// message, whatever the outcome of the query.
func (s *Service) turn(ctx context.Context, input string) error {
	if err := s.conversation.Append(chat.UserMessage(input)); err != nil {
		return err
	}
	s.turns++
	logger := s.logger.With().Int("turn", s.turns).Logger()

	s.console.BeginReply()

	result, err := s.gateway.Query(ctx, s.conversation.Messages())
	if err != nil {
		logger.Warn().Err(err).Msg("gateway query failed")
		result = ai.Complete{Text: errorReply(err)}
	}

	reply, err := s.renderer.Render(result)
	if err != nil {
		logger.Warn().Err(err).Msg("reply rendering failed")
		if reply != "" {
			reply += "\n"
		}
		reply += errorReply(err)
		s.console.Error("%v", err)
	}
	s.console.EndReply()

	if err := s.conversation.Append(chat.AssistantMessage(reply)); err != nil {
		return err
	}
	logger.Debug().Int("reply_length", len(reply)).Int("history", s.conversation.Len()).Msg("turn completed")
	return nil
}

func (s *Service) save() (string, error) {
	path, err := s.transcript.Save(s.conversation.Messages())
	if err != nil {
		return "", errors.Wrap(err, "failed to save conversation history")
	}
	s.console.Notice("Conversation history saved to %q.", path)
	return path, nil
}

func errorReply(err error) string {
	return "An error occurred: " + err.Error()
}
