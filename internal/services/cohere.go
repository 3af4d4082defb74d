package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/core"
)

const defaultCohereModel = "command-r"

// CohereService is the alternative chat provider, selected with LLM_PROVIDER=cohere.
type CohereService struct {
	client  *cohereclient.Client
	model   string
	timeout time.Duration
}

func NewCohereService(apiKey, model string, timeout time.Duration) (*CohereService, error) {
	return newCohereService(apiKey, "", model, timeout)
}

func newCohereService(apiKey, baseURL, model string, timeout time.Duration) (*CohereService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("COHERE_API_KEY is not set")
	}
	if model == "" {
		model = defaultCohereModel
	}
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	// Retries are counted by completeJSON, not by the SDK.
	opts := []core.RequestOption{
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout + time.Second}),
		cohereclient.WithMaxAttempts(1),
	}
	if baseURL != "" {
		opts = append(opts, cohereclient.WithBaseURL(baseURL))
	}
	client := cohereclient.NewClient(opts...)
	return &CohereService{client: client, model: model, timeout: timeout}, nil
}

func (c *CohereService) Name() string {
	return "cohere"
}

func (c *CohereService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := float64(req.Temperature)
	chatReq := &cohere.ChatRequest{
		Message:     req.Prompt,
		Model:       &c.model,
		Temperature: &temperature,
	}
	if req.System != "" {
		preamble := req.System
		chatReq.Preamble = &preamble
	}

	resp, err := c.client.Chat(ctx, chatReq)
	if err != nil {
		return "", classifyCohereError(fmt.Errorf("cohere chat error: %w", err))
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", transient(errors.New("cohere chat returned empty response"))
	}
	return resp.Text, nil
}

// classifyCohereError marks throttling, 5xx and transport failures as retryable. Auth
// and request errors are final.
func classifyCohereError(err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return transient(err)
		}
		return err
	}
	if isTransient(err) {
		return transient(err)
	}
	return err
}
