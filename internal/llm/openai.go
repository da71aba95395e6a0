package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	APIVersion  string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type OpenAIClient struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}

	var clientCfg openai.ClientConfig
	switch provider {
	case ProviderOpenAI:
		clientCfg = openai.DefaultConfig(apiKey)
		if baseURL != "" {
			clientCfg.BaseURL = baseURL
		}
	case ProviderAzure:
		if baseURL == "" {
			return nil, fmt.Errorf("base URL is required for azure provider")
		}
		clientCfg = openai.DefaultAzureConfig(apiKey, baseURL)
		if version := strings.TrimSpace(cfg.APIVersion); version != "" {
			clientCfg.APIVersion = version
		}
		// Azure addresses models by deployment name.
		clientCfg.AzureModelMapperFunc = func(string) string { return model }
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		provider:    provider,
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Provider() string {
	return c.provider
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.User})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("request chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("empty chat completion choices")
	}
	return Completion{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
