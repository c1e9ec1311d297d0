package ai

import (
	"context"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/z-tavern/chatcli/internal/config"
	"github.com/zhouzirui/z-tavern/chatcli/internal/model/chat"
)

// OpenAIGateway queries the OpenAI chat completions API.
type OpenAIGateway struct {
	client *openai.Client
	cfg    config.SessionConfig
}

// NewOpenAIGateway wraps an already configured client.
func NewOpenAIGateway(client *openai.Client, cfg config.SessionConfig) *OpenAIGateway {
	return &OpenAIGateway{client: client, cfg: cfg}
}

// Query sends the full history in one chat completion request.
func (g *OpenAIGateway) Query(ctx context.Context, history []chat.Message) (Result, error) {
	if err := validateHistory(history); err != nil {
		return nil, err
	}

	req := g.makeRequest(history)

	log.Debug().
		Str("provider", config.ProviderOpenAI).
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Bool("stream", req.Stream).
		Msg("querying chat completion")

	if !req.Stream {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, gatewayError(config.ProviderOpenAI, err, "chat completion failed")
		}
		if len(resp.Choices) == 0 {
			return nil, gatewayError(config.ProviderOpenAI, errors.New("no choices returned"), "chat completion failed")
		}
		return Complete{Text: resp.Choices[0].Message.Content}, nil
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, gatewayError(config.ProviderOpenAI, err, "chat completion stream failed")
	}
	return Streamed{Fragments: &completionStream{stream: stream}}, nil
}

func (g *OpenAIGateway) makeRequest(history []chat.Message) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: requestTemperature(g.cfg.Temperature),
		Stream:      g.cfg.Stream,
	}
}

// requestTemperature maps 0 to the smallest positive float32: the request field is
// omitempty, and an omitted temperature means the endpoint default of 1.
func requestTemperature(temperature float64) float32 {
	if temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(temperature)
}

type completionStream struct {
	stream *openai.ChatCompletionStream
}

func (s *completionStream) Recv() (string, error) {
	response, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		return "", gatewayError(config.ProviderOpenAI, err, "stream interrupted")
	}
	if len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Delta.Content, nil
}

func (s *completionStream) Close() {
	s.stream.Close()
}
