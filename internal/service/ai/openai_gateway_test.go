package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/chatcli/internal/config"
	"github.com/zhouzirui/z-tavern/chatcli/internal/model/chat"
)

func testSessionConfig(stream bool) config.SessionConfig {
	return config.SessionConfig{
		Model:       openai.GPT3Dot5Turbo,
		MaxTokens:   256,
		Temperature: 0.5,
		Stream:      stream,
	}
}

func newTestGateway(t *testing.T, stream bool, handler http.HandlerFunc) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := config.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}.NewClient()
	require.NoError(t, err)
	return NewOpenAIGateway(client, testSessionConfig(stream))
}

func testHistory() []chat.Message {
	return []chat.Message{chat.SystemMessage("sys"), chat.UserMessage("hello")}
}

func TestOpenAIGatewayComplete(t *testing.T) {
	var got openai.ChatCompletionRequest
	gateway := newTestGateway(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"Hello there"},"finish_reason":"stop"}]}`)
	})

	result, err := gateway.Query(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, Complete{Text: "Hello there"}, result)

	assert.Equal(t, openai.GPT3Dot5Turbo, got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.5, got.Temperature, 1e-6)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
}

func TestOpenAIGatewaySendsZeroTemperature(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)

	client, err := config.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}.NewClient()
	require.NoError(t, err)
	cfg := testSessionConfig(false)
	cfg.Temperature = 0
	gateway := NewOpenAIGateway(client, cfg)

	_, err = gateway.Query(context.Background(), testHistory())
	require.NoError(t, err)

	temperature, ok := body["temperature"]
	require.True(t, ok, "temperature missing from request body %v", body)
	assert.InDelta(t, 0, temperature, 1e-6)
}

func TestOpenAIGatewayStreamsFragmentsInOrder(t *testing.T) {
	gateway := newTestGateway(t, true, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, fragment := range []string{"Hi", "", " there", "!"} {
			_, _ = fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"model\":\"gpt-3.5-turbo\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", fragment)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})

	result, err := gateway.Query(context.Background(), testHistory())
	require.NoError(t, err)

	streamed, ok := result.(Streamed)
	require.True(t, ok, "expected streamed result, got %T", result)
	defer streamed.Fragments.Close()

	var fragments []string
	for {
		fragment, err := streamed.Fragments.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		fragments = append(fragments, fragment)
	}
	assert.Equal(t, []string{"Hi", "", " there", "!"}, fragments)
}

func TestOpenAIGatewayReturnsGatewayError(t *testing.T) {
	gateway := newTestGateway(t, false, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	})

	result, err := gateway.Query(context.Background(), testHistory())
	assert.Nil(t, result)

	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, config.ProviderOpenAI, gatewayErr.Provider)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}

func TestOpenAIGatewayRejectsHistoryWithoutSystemMessage(t *testing.T) {
	gateway := newTestGateway(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := gateway.Query(context.Background(), []chat.Message{chat.UserMessage("hello")})
	assert.ErrorIs(t, err, ErrInvalidHistory)

	_, err = gateway.Query(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidHistory)
}
