package services

import (
	"context"
	"math/rand"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/penny-labs/penny_api/dto"
)

// pennyGenerator is the slice of GeminiService the mascot needs.
type pennyGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PennyService produces the mascot's money tips and short context
// messages. Generated content is best effort, the static lists below
// keep the mascot talking when the provider is down.
type PennyService struct {
	appContext.DefaultService

	redisSvc  *RedisService
	generator pennyGenerator

	tipCacheTTL time.Duration
}

const PENNY_SVC = "penny_svc"

const tipCacheKey = "penny:tip"

func (svc PennyService) Id() string {
	return PENNY_SVC
}

func (svc *PennyService) Configure(ctx *appContext.Context) error {
	svc.tipCacheTTL = time.Hour
	return svc.DefaultService.Configure(ctx)
}

func (svc *PennyService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.generator = svc.Service(GEMINI_SVC).(*GeminiService)
	return nil
}

var fallbackTips = []string{
	"Small amounts add up. Saving $5 a day is over $1,800 a year.",
	"Check your subscriptions. The ones you forgot about are the most expensive.",
	"Before an impulse buy, wait 24 hours. Most of the urge fades overnight.",
	"Pay yourself first: move savings out the moment income lands.",
	"An emergency fund of even $500 keeps surprises off your credit card.",
}

var fallbackMessages = map[string][]string{
	"quest_complete": {
		"Nice work! Another quest down, your money brain is growing.",
		"Quest complete! Penny is proud of you.",
	},
	"streak": {
		"You're on a roll! Keep the streak alive tomorrow.",
		"Streaks build habits. Habits build wealth.",
	},
	"overspend": {
		"Today got away from you. Tomorrow is a fresh budget.",
		"One rough day doesn't break the plan. Back at it tomorrow!",
	},
	"welcome": {
		"Hi, I'm Penny! Let's make your money work as hard as you do.",
		"Welcome back! Ready to earn some XP?",
	},
}

// GetTip returns a short money tip, cached for an hour.
func (svc *PennyService) GetTip(ctx context.Context) (*dto.PennyTipResponse, error) {
	cached, err := svc.redisSvc.Get(ctx, tipCacheKey)
	if err == nil && cached != "" {
		return &dto.PennyTipResponse{Tip: cached, Cached: true}, nil
	}

	prompt := "You are Penny, a friendly personal finance mascot for young adults. " +
		"Give one practical money tip in at most two sentences. Respond with the tip only."

	tip, err := svc.generator.Generate(ctx, prompt)
	if err != nil {
		log.WithError(err).Warn("Tip generation failed, using fallback tip")
		return &dto.PennyTipResponse{Tip: fallbackTips[rand.Intn(len(fallbackTips))]}, nil
	}

	tip = strings.TrimSpace(tip)
	if err := svc.redisSvc.Set(ctx, tipCacheKey, tip, svc.tipCacheTTL); err != nil {
		log.WithError(err).Debug("Failed to cache tip")
	}

	return &dto.PennyTipResponse{Tip: tip}, nil
}

// GetMessage returns a short mascot message for a UI context.
func (svc *PennyService) GetMessage(ctx context.Context, messageContext string) (*dto.PennyMessageResponse, error) {
	if _, ok := fallbackMessages[messageContext]; !ok {
		messageContext = "welcome"
	}

	prompt := "You are Penny, a friendly personal finance mascot. Write one short, upbeat message " +
		"(max 20 words) for this moment in the app: " + messageContext + ". Respond with the message only."

	message, err := svc.generator.Generate(ctx, prompt)
	if err != nil {
		options := fallbackMessages[messageContext]
		return &dto.PennyMessageResponse{
			Context: messageContext,
			Message: options[rand.Intn(len(options))],
		}, nil
	}

	return &dto.PennyMessageResponse{
		Context: messageContext,
		Message: strings.TrimSpace(message),
	}, nil
}
