package openai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultChatBaseURL = "https://api.groq.com/openai/v1"
	DefaultChatModel   = "llama-3.1-8b-instant"
)

// ErrEmptyCompletion is returned when the completion has no usable content
var ErrEmptyCompletion = errors.New("chat completion returned no content")

// ChatAPI is the subset of the go-openai client used for completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// DefaultChatConfig mirrors the Groq settings the answer generator was tuned with
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		BaseURL:     DefaultChatBaseURL,
		Model:       DefaultChatModel,
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   200,
	}
}

// ChatClient sends single-turn prompts to an OpenAI-compatible chat endpoint
type ChatClient struct {
	api ChatAPI
	cfg ChatConfig
}

func NewChatClient(cfg ChatConfig) *ChatClient {
	defaults := DefaultChatConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return NewChatClientWithAPI(openai.NewClientWithConfig(clientCfg), cfg)
}

func NewChatClientWithAPI(api ChatAPI, cfg ChatConfig) *ChatClient {
	defaults := DefaultChatConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	return &ChatClient{api: api, cfg: cfg}
}

// Model returns the configured chat model
func (c *ChatClient) Model() string {
	return c.cfg.Model
}

// Complete sends prompt as a single user message and returns the trimmed reply
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}
