package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/model"
	"github.com/penny-labs/penny_api/shared"
)

// textGenerator is the slice of GeminiService quest generation needs.
// Kept small so tests can inject a fake.
type textGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// spendSource is the slice of LedgerService quest generation needs.
type spendSource interface {
	RecentSpend(ctx context.Context, user *model.User, limit int) ([]SpendEvent, error)
}

// locker is the slice of RedisService the generation guards need.
type locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type QuestService struct {
	appContext.DefaultService

	sqlSvc      *PostgresService
	locks       locker
	progressSvc *ProgressService

	generator textGenerator
	spend     spendSource

	lockTTL      time.Duration
	pollInterval time.Duration
	waitTimeout  time.Duration
}

const QUEST_SVC = "quest_svc"

func (svc QuestService) Id() string {
	return QUEST_SVC
}

func (svc *QuestService) Configure(ctx *appContext.Context) error {
	// The TTL and wait bound both cover a full generation cycle: up to
	// three provider attempts with backoff between them.
	svc.lockTTL = 2 * time.Minute
	svc.pollInterval = 500 * time.Millisecond
	svc.waitTimeout = 2 * time.Minute
	return svc.DefaultService.Configure(ctx)
}

func (svc *QuestService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.locks = svc.Service(REDIS_SVC).(*RedisService)
	svc.progressSvc = svc.Service(PROGRESS_SVC).(*ProgressService)
	svc.generator = svc.Service(GEMINI_SVC).(*GeminiService)
	svc.spend = svc.Service(LEDGER_SVC).(*LedgerService)
	return nil
}

// ListActive returns the user's active quests, generating a fresh batch
// when none survive the decay purge.
func (svc *QuestService) ListActive(ctx context.Context, userID string) (*dto.QuestListResponse, error) {
	user, err := svc.sqlSvc.GetUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "User not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	if err := svc.purgeDecayed(userID); err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	quests, err := svc.sqlSvc.GetActiveQuests(userID)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	if len(quests) > 0 {
		return svc.listResponse(quests, false), nil
	}

	quests, generated, err := svc.generateBatch(ctx, user)
	if err != nil {
		return nil, err
	}

	return svc.listResponse(quests, generated), nil
}

// generateBatch creates and persists a quest batch under a per-user
// advisory lock. A concurrent holder wins the race; this caller waits for
// the batch it persists, and generates itself only if the holder never
// delivers.
func (svc *QuestService) generateBatch(ctx context.Context, user *model.User) ([]model.Quest, bool, error) {
	lockKey := fmt.Sprintf("quest:generate:%s", user.ID)

	acquired, err := svc.locks.AcquireLock(ctx, lockKey, svc.lockTTL)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Quest generation lock unavailable, proceeding without it")
		acquired = true
	} else if acquired {
		defer func() {
			if err := svc.locks.ReleaseLock(context.Background(), lockKey); err != nil {
				log.WithError(err).Warn("Failed to release quest generation lock")
			}
		}()
	}

	if !acquired {
		quests, err := svc.awaitBatch(ctx, user.ID)
		if err != nil {
			return nil, false, err
		}
		if len(quests) > 0 {
			return quests, false, nil
		}
		// The lock holder never persisted anything, generate here after
		// all. Worst case is a duplicate batch, never an empty response.
		log.WithField("user_id", user.ID).Warn("Concurrent quest generation timed out, generating without the lock")
	}

	// Double check inside the lock, the race loser must not generate twice.
	quests, err := svc.sqlSvc.GetActiveQuests(user.ID)
	if err != nil {
		return nil, false, svc.sqlSvc.HandleError(err)
	}
	if len(quests) > 0 {
		return quests, false, nil
	}

	quests = svc.buildQuests(ctx, user)
	if err := svc.sqlSvc.CreateQuests(quests); err != nil {
		return nil, false, svc.sqlSvc.HandleError(err)
	}

	return quests, true, nil
}

// awaitBatch polls for the batch a concurrent generation is persisting.
// Generation takes seconds, so a lock-race loser keeps reading until the
// winner's quests land or the wait budget runs out.
func (svc *QuestService) awaitBatch(ctx context.Context, userID string) ([]model.Quest, error) {
	deadline := time.Now().Add(svc.waitTimeout)

	for {
		quests, err := svc.sqlSvc.GetActiveQuests(userID)
		if err != nil {
			return nil, svc.sqlSvc.HandleError(err)
		}
		if len(quests) > 0 {
			return quests, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}

		select {
		case <-time.After(svc.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// buildQuests produces a full batch, or the single fallback quest when
// generation or validation fails.
func (svc *QuestService) buildQuests(ctx context.Context, user *model.User) []model.Quest {
	events, err := svc.spend.RecentSpend(ctx, user, shared.SpendContextLimit)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("No spend context available for quest generation")
		events = nil
	}

	prompt := buildQuestPrompt(events)

	raw, err := svc.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Quest generation failed, using fallback quest")
		recordQuestFallback()
		return []model.Quest{fallbackQuest(user.ID)}
	}

	batch, err := ParseQuestBatch(raw)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Generated quest batch rejected, using fallback quest")
		recordQuestFallback()
		return []model.Quest{fallbackQuest(user.ID)}
	}

	now := time.Now()
	quests := make([]model.Quest, 0, len(batch))
	for _, g := range batch {
		questions := make([]model.QuestQuestion, 0, len(g.Questions))
		for _, q := range g.Questions {
			questions = append(questions, model.QuestQuestion{
				Question:      q.Question,
				Options:       q.Options,
				CorrectAnswer: int(q.CorrectAnswer),
				Explanation:   q.Explanation,
			})
		}

		payload, err := json.Marshal(questions)
		if err != nil {
			log.WithError(err).Warn("Failed to encode quest questions, using fallback quest")
			recordQuestFallback()
			return []model.Quest{fallbackQuest(user.ID)}
		}

		quests = append(quests, model.Quest{
			ID:            newID(),
			UserID:        user.ID,
			Title:         g.Title,
			Description:   g.Description,
			Type:          g.Type,
			Difficulty:    g.Difficulty,
			ContextSource: g.ContextSource,
			Questions:     payload,
			XPReward:      int(g.XPReward),
			Status:        shared.QuestStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	return quests
}

// Complete marks a quest completed and awards its XP.
func (svc *QuestService) Complete(ctx context.Context, userID, questID string) (*dto.CompleteQuestResponse, error) {
	quest, err := svc.sqlSvc.GetQuest(userID, questID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "Quest not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	if quest.Status != shared.QuestStatusActive {
		return nil, shared.NewConflictError(nil, "Quest is already "+quest.Status)
	}

	now := time.Now()
	quest.Status = shared.QuestStatusCompleted
	quest.CompletedAt = &now
	quest.UpdatedAt = now

	if err := svc.sqlSvc.UpdateQuest(quest); err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	totalXP, err := svc.progressSvc.Award(userID, quest.XPReward, now)
	if err != nil {
		return nil, err
	}

	if err := svc.progressSvc.AppendCompletedQuest(userID, questID); err != nil {
		log.WithError(err).WithField("quest_id", questID).Warn("Failed to append quest to completed set")
	}

	return &dto.CompleteQuestResponse{
		Quest:    questToResponse(*quest),
		XPEarned: quest.XPReward,
		TotalXP:  totalXP,
	}, nil
}

// Reset deletes the user's active quests so the next list regenerates.
func (svc *QuestService) Reset(userID string) (int64, error) {
	deleted, err := svc.sqlSvc.DeleteActiveQuests(userID)
	if err != nil {
		return 0, svc.sqlSvc.HandleError(err)
	}
	return deleted, nil
}

// purgeDecayed removes active quests whose persisted question set no
// longer parses to the expected shape. They cannot be played, so they
// are regenerated rather than surfaced.
func (svc *QuestService) purgeDecayed(userID string) error {
	quests, err := svc.sqlSvc.GetActiveQuests(userID)
	if err != nil {
		return err
	}

	var decayed []string
	for _, quest := range quests {
		var questions []model.QuestQuestion
		if len(quest.Questions) == 0 {
			decayed = append(decayed, quest.ID)
			continue
		}
		if err := json.Unmarshal(quest.Questions, &questions); err != nil {
			decayed = append(decayed, quest.ID)
			continue
		}
		if len(questions) != shared.QuestQuestionCount {
			decayed = append(decayed, quest.ID)
		}
	}

	if len(decayed) == 0 {
		return nil
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"count":   len(decayed),
	}).Info("Purging decayed quests")

	return svc.sqlSvc.DeleteQuests(userID, decayed)
}

func (svc *QuestService) listResponse(quests []model.Quest, generated bool) *dto.QuestListResponse {
	resp := &dto.QuestListResponse{
		Quests:    make([]dto.QuestResponse, 0, len(quests)),
		Generated: generated,
	}
	for _, q := range quests {
		resp.Quests = append(resp.Quests, questToResponse(q))
	}
	return resp
}

func questToResponse(q model.Quest) dto.QuestResponse {
	var questions []model.QuestQuestion
	if len(q.Questions) > 0 {
		_ = json.Unmarshal(q.Questions, &questions)
	}

	resp := dto.QuestResponse{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		Type:          q.Type,
		Difficulty:    q.Difficulty,
		ContextSource: q.ContextSource,
		Questions:     questions,
		XPReward:      q.XPReward,
		Status:        q.Status,
		CreatedAt:     q.CreatedAt.Format(time.RFC3339),
	}
	if q.CompletedAt != nil {
		completedAt := q.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}
	return resp
}

func buildQuestPrompt(events []SpendEvent) string {
	var b strings.Builder

	b.WriteString("You are a personal finance tutor for a gamified learning app.\n")
	fmt.Fprintf(&b, "Generate exactly %d learning quests as a JSON array. Each quest must have:\n", shared.QuestBatchSize)
	b.WriteString(`- "title": short punchy title
- "description": one sentence on what the quest teaches
- "type": one of "Spending Slayer", "Asset Builder", "Knowledge Heist", "Lifestyle Pivot", "General"
- "difficulty": one of "Easy", "Medium", "Hard"
- "context_source": "transaction" if grounded in the spending history below, otherwise "theory"
- "xp_reward": integer between 25 and 100
- "questions": exactly 4 multiple-choice questions, each with "question", exactly 4 "options", "correct_answer" (0-3 index) and "explanation"
`)

	if len(events) > 0 {
		b.WriteString("\nBase the first quests on this recent spending history:\n")
		for _, e := range events {
			desc := e.Description
			if desc == "" {
				desc = e.Merchant
			}
			fmt.Fprintf(&b, "- $%.2f %s on %s\n", e.Amount, desc, e.OccurredAt.Format("2006-01-02"))
		}
		b.WriteString("\nThe last quest should cover general personal finance theory.\n")
	} else {
		b.WriteString("\nNo spending history is available, base all quests on personal finance theory.\n")
	}

	b.WriteString("\nRespond with the JSON array only, no prose and no markdown fences.")

	return b.String()
}

// fallbackQuest is served when generation or validation fails. It keeps
// the product usable while the provider misbehaves.
func fallbackQuest(userID string) model.Quest {
	questions := []model.QuestQuestion{
		{
			Question:      "What is the 50/30/20 budgeting rule?",
			Options:       []string{"50% needs, 30% wants, 20% savings", "50% savings, 30% needs, 20% wants", "50% wants, 30% savings, 20% needs", "50% rent, 30% food, 20% fun"},
			CorrectAnswer: 0,
			Explanation:   "The rule splits after-tax income into 50% needs, 30% wants and 20% savings or debt repayment.",
		},
		{
			Question:      "Which of these is an example of a fixed expense?",
			Options:       []string{"Concert tickets", "Monthly rent", "Restaurant meals", "Impulse shopping"},
			CorrectAnswer: 1,
			Explanation:   "Fixed expenses like rent stay the same every month, which makes them easy to plan around.",
		},
		{
			Question:      "Why does an emergency fund matter?",
			Options:       []string{"It earns the highest returns", "It covers surprise costs without debt", "It replaces insurance", "It lowers your taxes"},
			CorrectAnswer: 1,
			Explanation:   "Cash on hand for surprises keeps an unexpected bill from turning into high-interest debt.",
		},
		{
			Question:      "What does paying yourself first mean?",
			Options:       []string{"Buying wants before needs", "Saving before spending anything else", "Paying bills late", "Taking a salary from your budget"},
			CorrectAnswer: 1,
			Explanation:   "Moving money to savings as soon as income arrives makes saving automatic instead of optional.",
		},
	}

	payload, _ := json.Marshal(questions)
	now := time.Now()

	return model.Quest{
		ID:            newID(),
		UserID:        userID,
		Title:         "Budgeting Bootcamp",
		Description:   "Cover the essentials of building a budget that survives real life.",
		Type:          shared.QuestTypeGeneral,
		Difficulty:    shared.DifficultyEasy,
		ContextSource: shared.ContextSourceTheory,
		Questions:     payload,
		XPReward:      shared.DefaultQuestXPReward,
		Status:        shared.QuestStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
