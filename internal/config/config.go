package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when the selected provider has no API credential.
var ErrMissingCredential = errors.New("missing API credential")

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// Flag and config keys. Environment variables use the CHAT_ prefix with dashes replaced
// by underscores, e.g. CHAT_MAX_TOKENS.
const (
	KeyProvider         = "provider"
	KeyModel            = "model"
	KeyMaxTokens        = "max-tokens"
	KeyTemperature      = "temperature"
	KeyStream           = "stream"
	KeyUserName         = "user-name"
	KeyAssistantName    = "assistant-name"
	KeyLogDir           = "log-dir"
	KeyLogFileTemplate  = "log-file-template"
	KeyIncludeSystem    = "include-system"
	KeyClsAlias         = "cls-alias"
	KeySystemPromptFile = "system-prompt-file"
	KeyMarkdown         = "markdown"
	KeyLogLevel         = "log-level"
	KeyLogFormat        = "log-format"
)

const (
	DefaultModel            = openai.GPT3Dot5Turbo
	DefaultMaxTokens        = 1024
	DefaultTemperature      = 0.7
	DefaultLogDir           = "chat_log"
	DefaultLogFileTemplate  = "chat_log_%d.txt"
	DefaultSystemPromptFile = "system_prompt.txt"
)

// Config groups everything the chat client needs at startup.
type Config struct {
	Session SessionConfig
	AI      AIConfig
	Log     LogConfig
}

// SessionConfig is fixed for the whole run.
type SessionConfig struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	Stream           bool
	UserName         string
	AssistantName    string
	LogDir           string
	LogFileTemplate  string
	IncludeSystem    bool
	ClearAliases     []string
	SystemPromptFile string
	Markdown         bool
}

// AIConfig selects the completion provider and holds its credentials.
type AIConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	Ark      ArkConfig
}

// OpenAIConfig describes the OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// ArkConfig describes the Volcengine Ark endpoint.
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	BaseURL   string
	Region    string
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string
	Format string
}

// RegisterFlags declares the command line flags read by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(KeyProvider, ProviderOpenAI, "Completion provider (openai, ark)")
	flags.String(KeyModel, DefaultModel, "Model identifier")
	flags.Int(KeyMaxTokens, DefaultMaxTokens, "Maximum output tokens per reply")
	flags.Float64(KeyTemperature, DefaultTemperature, "Sampling temperature in [0,1]")
	flags.Bool(KeyStream, true, "Stream replies as they are generated")
	flags.String(KeyUserName, "User", "Display name for the user")
	flags.String(KeyAssistantName, "AI", "Display name for the assistant")
	flags.String(KeyLogDir, DefaultLogDir, "Directory receiving chat transcripts")
	flags.String(KeyLogFileTemplate, DefaultLogFileTemplate, "Transcript file name, %d is replaced by the run index")
	flags.Bool(KeyIncludeSystem, true, "Write the system message to the transcript")
	flags.Bool(KeyClsAlias, false, "Also accept cls as the clear command")
	flags.String(KeySystemPromptFile, DefaultSystemPromptFile, "File holding the system prompt")
	flags.Bool(KeyMarkdown, false, "Render complete (non-streamed) replies as markdown")
	flags.String(KeyLogLevel, "warn", "Log level (debug, info, warn, error)")
	flags.String(KeyLogFormat, "text", "Log format (json, text)")
}

// NewViper returns a viper instance bound to flags, CHAT_* environment variables and an
// optional chat.yaml config file.
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("chat")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("chat")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.chat")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.Wrap(err, "failed to bind flags")
		}
	}
	return v, nil
}

// Load builds the configuration from v and the credential environment variables.
func Load(v *viper.Viper) (*Config, error) {
	session, err := loadSessionConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Session: session,
		AI:      ai,
		Log: LogConfig{
			Level:  getOrDefault(v, KeyLogLevel, "warn"),
			Format: getOrDefault(v, KeyLogFormat, "text"),
		},
	}, nil
}

func loadSessionConfig(v *viper.Viper) (SessionConfig, error) {
	maxTokens, err := parseInt(v, KeyMaxTokens, DefaultMaxTokens)
	if err != nil {
		return SessionConfig{}, err
	}
	if maxTokens <= 0 {
		return SessionConfig{}, fmt.Errorf("invalid %s value %d: must be positive", KeyMaxTokens, maxTokens)
	}

	temperature, err := parseFloat(v, KeyTemperature, DefaultTemperature)
	if err != nil {
		return SessionConfig{}, err
	}
	if temperature < 0 || temperature > 1 {
		return SessionConfig{}, fmt.Errorf("invalid %s value %g: must be within [0,1]", KeyTemperature, temperature)
	}

	stream, err := parseBool(v, KeyStream, true)
	if err != nil {
		return SessionConfig{}, err
	}

	includeSystem, err := parseBool(v, KeyIncludeSystem, true)
	if err != nil {
		return SessionConfig{}, err
	}

	clsAlias, err := parseBool(v, KeyClsAlias, false)
	if err != nil {
		return SessionConfig{}, err
	}
	aliases := []string{"clear"}
	if clsAlias {
		aliases = append(aliases, "cls")
	}

	markdown, err := parseBool(v, KeyMarkdown, false)
	if err != nil {
		return SessionConfig{}, err
	}

	template := getOrDefault(v, KeyLogFileTemplate, DefaultLogFileTemplate)
	if !validLogFileTemplate(template) {
		return SessionConfig{}, fmt.Errorf("invalid %s value %q: want a file name with a single %%d", KeyLogFileTemplate, template)
	}

	return SessionConfig{
		Model:            getOrDefault(v, KeyModel, DefaultModel),
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		Stream:           stream,
		UserName:         getOrDefault(v, KeyUserName, "User"),
		AssistantName:    getOrDefault(v, KeyAssistantName, "AI"),
		LogDir:           getOrDefault(v, KeyLogDir, DefaultLogDir),
		LogFileTemplate:  template,
		IncludeSystem:    includeSystem,
		ClearAliases:     aliases,
		SystemPromptFile: getString(v, KeySystemPromptFile, DefaultSystemPromptFile),
		Markdown:         markdown,
	}, nil
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	provider := strings.ToLower(getOrDefault(v, KeyProvider, ProviderOpenAI))

	cfg := AIConfig{
		Provider: provider,
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
		},
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
	}

	switch provider {
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return AIConfig{}, errors.Wrap(ErrMissingCredential, "OPENAI_API_KEY is not set")
		}
	case ProviderArk:
		if !cfg.Ark.Enabled() {
			return AIConfig{}, errors.Wrap(ErrMissingCredential, "ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY is not set")
		}
	default:
		return AIConfig{}, fmt.Errorf("invalid %s value %q: want %s or %s", KeyProvider, provider, ProviderOpenAI, ProviderArk)
	}

	return cfg, nil
}

// Enabled reports whether a usable Ark credential was provided.
func (c ArkConfig) Enabled() bool {
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// NewChatModel creates the Ark chat model with the session's sampling settings.
func (c ArkConfig) NewChatModel(ctx context.Context, session SessionConfig) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, errors.Wrap(ErrMissingCredential, "ark")
	}

	temperature := float32(session.Temperature)
	maxTokens := session.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       session.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ark chat model")
	}
	return chatModel, nil
}

// NewClient creates the OpenAI client.
func (c OpenAIConfig) NewClient() (*openai.Client, error) {
	if c.APIKey == "" {
		return nil, errors.Wrap(ErrMissingCredential, "openai")
	}
	clientConfig := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		clientConfig.BaseURL = c.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getString returns the raw value, allowing an explicit empty string to override the default.
func getString(v *viper.Viper, key, defaultValue string) string {
	if !v.IsSet(key) {
		return defaultValue
	}
	return strings.TrimSpace(v.GetString(key))
}

func getOrDefault(v *viper.Viper, key, defaultValue string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v *viper.Viper, key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloat(v *viper.Viper, key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseInt(v *viper.Viper, key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// validLogFileTemplate reports whether template formats a single run index into a plain
// file name that differs per index.
func validLogFileTemplate(template string) bool {
	first, second := fmt.Sprintf(template, 0), fmt.Sprintf(template, 1)
	if first == second || strings.Contains(first, "%!") || strings.Contains(second, "%!") {
		return false
	}
	return !strings.ContainsAny(first, `/\`)
}
