package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/config"
	"github.com/sashabaranov/go-openai"
)

const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	defaultGroqModel  = "llama-3.1-70b-versatile"
	defaultLLMTimeout = 15 * time.Second
)

// GroqService talks to Groq (or any OpenAI-compatible endpoint) through go-openai.
type GroqService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewGroqService(apiKey, baseURL, model string, timeout time.Duration) (*GroqService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GROQ_API_KEY is not set; please add it to .env or deployment env")
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultGroqModel
	}
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}

	return &GroqService{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

func (g *GroqService) Name() string {
	return "groq"
}

func (g *GroqService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(fmt.Errorf("groq API error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", transient(errors.New("no response from Groq"))
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError marks throttling, server errors and transport failures retryable.
// Other 4xx (bad key, bad request) are final.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return transient(err)
	}
	if status == 0 && isTransient(err) {
		return transient(err)
	}
	return err
}

// NewLLM picks the configured provider.
func NewLLM(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "", "groq":
		return NewGroqService(cfg.GroqAPIKey, cfg.BaseURL, cfg.GroqModel, cfg.Timeout)
	case "cohere":
		return NewCohereService(cfg.CohereKey, cfg.CohereModel, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
}
