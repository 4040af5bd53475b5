package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newGeminiService(invoke invokeFunc) *GeminiService {
	return &GeminiService{
		model:          "test-model",
		invoke:         invoke,
		maxAttempts:    3,
		attemptTimeout: time.Second,
		backoff:        time.Millisecond,
	}
}

func TestGenerateWithoutClientFails(t *testing.T) {
	svc := newGeminiService(nil)

	_, err := svc.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrGenerationExhausted)
}

func TestGenerateReturnsText(t *testing.T) {
	calls := 0
	svc := newGeminiService(func(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
		calls++
		return "three quests", nil
	})

	text, err := svc.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "three quests", text)
	assert.Equal(t, 1, calls)
}

func TestGenerateEmptyResponseFailsWithoutRetry(t *testing.T) {
	calls := 0
	svc := newGeminiService(func(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
		calls++
		return "", nil
	})

	_, err := svc.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, 1, calls)
}

func TestGenerateRetriesRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	svc := newGeminiService(func(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("quota exceeded for model")
		}
		return "recovered", nil
	})

	text, err := svc.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 3, calls)
}

func TestGenerateNonRateLimitErrorFailsFast(t *testing.T) {
	calls := 0
	svc := newGeminiService(func(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
		calls++
		return "", errors.New("invalid argument")
	})

	_, err := svc.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, 1, calls)
}

func TestGeneratePersistentRateLimitExhaustsAttempts(t *testing.T) {
	calls := 0
	svc := newGeminiService(func(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
		calls++
		return "", genai.APIError{Code: 429, Message: "resource exhausted"}
	})

	_, err := svc.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, 3, calls)
}

func TestGenerateJSONRequestsJSONBody(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	svc := newGeminiService(func(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
		gotConfig = config
		return `[]`, nil
	})

	_, err := svc.GenerateJSON(context.Background(), "prompt")
	require.NoError(t, err)
	require.NotNil(t, gotConfig)
	assert.Equal(t, "application/json", gotConfig.ResponseMIMEType)
}
