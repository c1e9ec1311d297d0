package ai

import (
	"context"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-tavern/chatcli/internal/config"
	"github.com/zhouzirui/z-tavern/chatcli/internal/model/chat"
)

// ChainGateway queries an eino chat model through a compiled chain.
type ChainGateway struct {
	provider string
	cfg      config.SessionConfig
	chain    compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewChainGateway compiles a single-node chain around chatModel.
func NewChainGateway(ctx context.Context, provider string, chatModel model.BaseChatModel, cfg config.SessionConfig) (*ChainGateway, error) {
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, gatewayError(provider, err, "failed to compile chat chain")
	}

	return &ChainGateway{
		provider: provider,
		cfg:      cfg,
		chain:    runnable,
	}, nil
}

// Query sends the full history. With streaming enabled the reply is returned as a
// fragment stream, otherwise as one complete text.
func (g *ChainGateway) Query(ctx context.Context, history []chat.Message) (Result, error) {
	if err := validateHistory(history); err != nil {
		return nil, err
	}

	input := toSchemaMessages(history)
	opt := compose.WithChatModelOption(
		model.WithModel(g.cfg.Model),
		model.WithMaxTokens(g.cfg.MaxTokens),
		model.WithTemperature(float32(g.cfg.Temperature)),
	)

	log.Debug().
		Str("provider", g.provider).
		Int("messages", len(input)).
		Bool("stream", g.cfg.Stream).
		Msg("querying chat model")

	if !g.cfg.Stream {
		response, err := g.chain.Invoke(ctx, input, opt)
		if err != nil {
			return nil, gatewayError(g.provider, err, "failed to run chat chain")
		}
		return Complete{Text: response.Content}, nil
	}

	reader, err := g.chain.Stream(ctx, input, opt)
	if err != nil {
		return nil, gatewayError(g.provider, err, "failed to stream chat chain output")
	}
	return Streamed{Fragments: &messageStream{provider: g.provider, reader: reader}}, nil
}

func toSchemaMessages(history []chat.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(msg.Content))
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return messages
}

type messageStream struct {
	provider string
	reader   *schema.StreamReader[*schema.Message]
}

func (s *messageStream) Recv() (string, error) {
	for {
		chunk, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", gatewayError(s.provider, err, "stream interrupted")
		}
		if chunk == nil {
			continue
		}
		return chunk.Content, nil
	}
}

func (s *messageStream) Close() {
	s.reader.Close()
}
