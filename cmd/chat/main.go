package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-tavern/chatcli/internal/config"
	"github.com/zhouzirui/z-tavern/chatcli/internal/handler"
	"github.com/zhouzirui/z-tavern/chatcli/internal/handler/stream"
	"github.com/zhouzirui/z-tavern/chatcli/internal/handler/terminal"
	"github.com/zhouzirui/z-tavern/chatcli/internal/service/ai"
	"github.com/zhouzirui/z-tavern/chatcli/internal/service/chat"
	"github.com/zhouzirui/z-tavern/chatcli/internal/service/transcript"
)

var rootCmd = &cobra.Command{
	Use:           "chat",
	Short:         "Chat with a hosted language model from the terminal",
	Long:          "Type a message and press enter. Type exit to quit and save the transcript, clear to clear the screen.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[Error] %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file before reading config; the warning waits for the configured logger.
	dotenvErr := godotenv.Load()

	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if err := initLogger(cfg.Log); err != nil {
		return err
	}
	if dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		log.Warn().Err(dotenvErr).Msg("failed to load .env file, continuing with system environment variables only")
	}
	logger := log.With().Str("run_id", uuid.NewString()).Str("provider", cfg.AI.Provider).Logger()

	gateway, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}

	console := terminal.New(os.Stdin, os.Stdout, cfg.Session)
	defer console.Close()

	// Unblock a pending read when the session is cancelled by a signal.
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	fs := afero.NewOsFs()
	systemPrompt, err := ai.ResolveSystemPrompt(fs, cfg.Session.SystemPromptFile)
	if err != nil {
		console.Notice("%v; using the default system prompt", err)
	}

	var renderOpts []stream.Option
	if cfg.Session.Markdown {
		renderOpts = append(renderOpts, stream.WithMarkdown(console.Width()))
	}
	renderer, err := stream.New(console.Out(), renderOpts...)
	if err != nil {
		return err
	}

	svc := chat.NewService(cfg.Session, systemPrompt, chat.Deps{
		Console:    console,
		Router:     handler.NewRouter(cfg.Session.ClearAliases),
		Gateway:    gateway,
		Renderer:   renderer,
		Transcript: transcript.NewLogger(fs, cfg.Session),
	}).WithLogger(logger)

	logger.Info().Str("model", cfg.Session.Model).Bool("stream", cfg.Session.Stream).Msg("session started")

	path, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info().Str("path", path).Int("messages", svc.Conversation().Len()).Msg("session finished")
	return nil
}

func newGateway(ctx context.Context, cfg *config.Config) (ai.Gateway, error) {
	switch cfg.AI.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.AI.Ark.NewChatModel(ctx, cfg.Session)
		if err != nil {
			return nil, err
		}
		gateway, err := ai.NewChainGateway(ctx, config.ProviderArk, chatModel, cfg.Session)
		if err != nil {
			return nil, err
		}
		return gateway, nil
	case config.ProviderOpenAI:
		client, err := cfg.AI.OpenAI.NewClient()
		if err != nil {
			return nil, err
		}
		return ai.NewOpenAIGateway(client, cfg.Session), nil
	}
	return nil, errors.Errorf("unsupported provider %q", cfg.AI.Provider)
}
