package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/models"
	"github.com/developia-II/slang-translator-backend/utils"
)

// CompletionRequest is one prompt for a chat model.
type CompletionRequest struct {
	System      string
	Prompt      string
	JSON        bool
	Temperature float32
	MaxTokens   int
}

// LLM is a chat model that answers a single prompt. Implementations apply their own
// per-call timeout and mark retryable failures with transientError.
type LLM interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// transientError marks a failure worth one more attempt: timeouts, throttling, 5xx,
// broken connections.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func isTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// malformedReplyError is returned when the model answered but not with the JSON asked for.
type malformedReplyError struct {
	err error
}

func (e *malformedReplyError) Error() string { return "malformed reply: " + e.err.Error() }
func (e *malformedReplyError) Unwrap() error { return e.err }

const (
	maxLLMAttempts = 2
	retryBackoff   = 400 * time.Millisecond

	strictJSONSuffix = "\n\nYour previous answer could not be parsed. Reply with valid JSON only: " +
		"one object, no markdown fences, no commentary."
)

// backoffSleep waits between attempts. Tests replace it.
var backoffSleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// completeJSON asks the model for a JSON object and decodes it into T, validating T's
// struct tags. Transport failures and malformed replies draw from one budget of
// maxLLMAttempts calls; a malformed reply is retried with a stricter instruction.
// Exhaustion or a non-retryable failure yields models.ErrUpstreamUnavailable.
func completeJSON[T any](ctx context.Context, llm LLM, req CompletionRequest, op string) (*T, error) {
	var lastErr error
	stricter := false

	for attempt := 1; attempt <= maxLLMAttempts; attempt++ {
		if attempt > 1 {
			if err := backoffSleep(ctx, retryBackoff); err != nil {
				lastErr = err
				break
			}
		}

		start := time.Now()
		raw, err := llm.Complete(ctx, req)
		latency := time.Since(start)
		if err != nil {
			lastErr = err
			log.Printf("llm: op=%s provider=%s attempt=%d latency=%s err=%v", op, llm.Name(), attempt, latency, err)
			if !isTransient(err) || ctx.Err() != nil {
				break
			}
			continue
		}

		out, err := decodeReply[T](raw)
		if err != nil {
			lastErr = err
			log.Printf("llm: op=%s provider=%s attempt=%d latency=%s malformed=%v", op, llm.Name(), attempt, latency, err)
			if !stricter {
				req.Prompt += strictJSONSuffix
				req.JSON = true
				stricter = true
			}
			continue
		}

		log.Printf("llm: op=%s provider=%s attempt=%d latency=%s ok", op, llm.Name(), attempt, latency)
		return out, nil
	}

	return nil, fmt.Errorf("%w: %s via %s: %w", models.ErrUpstreamUnavailable, op, llm.Name(), lastErr)
}

func decodeReply[T any](raw string) (*T, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, &malformedReplyError{err: err}
	}
	var out T
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, &malformedReplyError{err: err}
	}
	if err := utils.Validate.Struct(out); err != nil {
		return nil, &malformedReplyError{err: err}
	}
	return &out, nil
}

// extractJSONObject drops markdown fences and any chatter around the outermost object.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in reply")
	}
	return s[start : end+1], nil
}
