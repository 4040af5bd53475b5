package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// ErrGenerationExhausted reports that every generation attempt failed.
// Callers fall back to static content; this error never reaches a client.
var ErrGenerationExhausted = errors.New("generation attempts exhausted")

// invokeFunc performs one provider call. It is a field so tests can
// substitute the network round trip.
type invokeFunc func(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)

type GeminiService struct {
	appContext.DefaultService

	client *genai.Client
	model  string
	invoke invokeFunc

	maxAttempts    int
	attemptTimeout time.Duration
	backoff        time.Duration
}

const GEMINI_SVC = "gemini_svc"

func (svc GeminiService) Id() string {
	return GEMINI_SVC
}

func (svc *GeminiService) Configure(ctx *appContext.Context) error {
	svc.model = os.Getenv("GEMINI_MODEL")
	if svc.model == "" {
		svc.model = "gemini-2.0-flash"
	}

	svc.maxAttempts = 3
	svc.attemptTimeout = 30 * time.Second
	svc.backoff = time.Second

	return svc.DefaultService.Configure(ctx)
}

func (svc *GeminiService) Start() error {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Warn("GEMINI_API_KEY not set, generated content will use fallbacks")
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}

	svc.client = client
	svc.invoke = svc.callModel
	return nil
}

func (svc *GeminiService) callModel(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := svc.client.Models.GenerateContent(ctx, svc.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Generate returns plain text for a prompt.
func (svc *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	return svc.generate(ctx, prompt, nil)
}

// GenerateJSON asks the model for a JSON response body.
func (svc *GeminiService) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return svc.generate(ctx, prompt, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
}

func (svc *GeminiService) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if svc.invoke == nil {
		return "", ErrGenerationExhausted
	}

	var lastErr error
	for i := 0; i < svc.maxAttempts; i++ {
		if i > 0 {
			// Exponential backoff with jitter. Retry only makes sense
			// for rate limiting.
			delay := time.Duration(1<<uint(i-1))*svc.backoff + time.Duration(rand.Int63n(int64(svc.backoff)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, svc.attemptTimeout)
		text, err := svc.invoke(attemptCtx, prompt, config)
		cancel()

		if err == nil {
			// An empty body is a provider bug, not a throttle.
			if text == "" {
				recordGenerationAttempt(i+1, false)
				return "", fmt.Errorf("%w: empty generation response", ErrGenerationExhausted)
			}
			recordGenerationAttempt(i+1, true)
			return text, nil
		}

		lastErr = err
		if !isRateLimited(err) {
			log.WithError(err).Error("Generation request failed")
			recordGenerationAttempt(i+1, false)
			return "", fmt.Errorf("%w: %v", ErrGenerationExhausted, err)
		}

		log.WithError(err).WithField("attempt", i+1).Warn("Generation rate limited, retrying")
		recordGenerationRetry()
	}

	recordGenerationAttempt(svc.maxAttempts, false)
	return "", fmt.Errorf("%w: %v", ErrGenerationExhausted, lastErr)
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted")
}
