package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/model"
	"github.com/penny-labs/penny_api/shared"
)

// dailySpendSource is the slice of LedgerService daily evaluation needs.
type dailySpendSource interface {
	TodaySpend(ctx context.Context, user *model.User, now time.Time) (float64, error)
	CountTodayTransactions(ctx context.Context, user *model.User, now time.Time) (int, error)
}

type DailyQuestService struct {
	appContext.DefaultService

	sqlSvc      *PostgresService
	locks       locker
	progressSvc *ProgressService

	spend dailySpendSource

	lockTTL time.Duration
	closed  chan struct{}
}

const DAILY_QUEST_SVC = "daily_quest_svc"

func (svc DailyQuestService) Id() string {
	return DAILY_QUEST_SVC
}

func (svc *DailyQuestService) Configure(ctx *appContext.Context) error {
	svc.lockTTL = 15 * time.Second
	svc.closed = make(chan struct{}, 1)
	return svc.DefaultService.Configure(ctx)
}

func (svc *DailyQuestService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.locks = svc.Service(REDIS_SVC).(*RedisService)
	svc.progressSvc = svc.Service(PROGRESS_SVC).(*ProgressService)
	svc.spend = svc.Service(LEDGER_SVC).(*LedgerService)

	go svc.startExpirySweep()

	return nil
}

func (svc *DailyQuestService) Shutdown() {
	svc.closed <- struct{}{}
}

// GetToday returns the user's daily batch for the current day, creating
// it on first read and refreshing every active quest's progress.
func (svc *DailyQuestService) GetToday(ctx context.Context, userID string) (*dto.DailyQuestListResponse, error) {
	return svc.getToday(ctx, userID, time.Now())
}

func (svc *DailyQuestService) getToday(ctx context.Context, userID string, now time.Time) (*dto.DailyQuestListResponse, error) {
	user, err := svc.sqlSvc.GetUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "User not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	day := now.Format("2006-01-02")

	quests, err := svc.ensureBatch(ctx, userID, day, now)
	if err != nil {
		return nil, err
	}

	for i := range quests {
		if quests[i].Status != shared.QuestStatusActive {
			continue
		}
		if err := svc.evaluate(ctx, user, &quests[i], now); err != nil {
			log.WithError(err).WithField("quest_id", quests[i].ID).Warn("Daily quest evaluation failed")
		}
	}

	resp := &dto.DailyQuestListResponse{
		Day:    day,
		Quests: make([]dto.DailyQuestResponse, 0, len(quests)),
	}
	for _, q := range quests {
		resp.Quests = append(resp.Quests, dailyQuestToResponse(q))
	}
	return resp, nil
}

// Refresh re-evaluates today's active quests and returns the batch.
func (svc *DailyQuestService) Refresh(ctx context.Context, userID string) (*dto.DailyQuestListResponse, error) {
	return svc.GetToday(ctx, userID)
}

// ensureBatch creates the day's catalogue exactly once per (user, day).
func (svc *DailyQuestService) ensureBatch(ctx context.Context, userID, day string, now time.Time) ([]model.DailyQuest, error) {
	quests, err := svc.sqlSvc.GetDailyQuestsForDay(userID, day)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}
	if len(quests) > 0 {
		return quests, nil
	}

	lockKey := fmt.Sprintf("dailyquest:generate:%s:%s", userID, day)
	acquired, err := svc.locks.AcquireLock(ctx, lockKey, svc.lockTTL)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Daily quest lock unavailable, proceeding without it")
		acquired = true
	} else if acquired {
		defer func() {
			if err := svc.locks.ReleaseLock(context.Background(), lockKey); err != nil {
				log.WithError(err).Warn("Failed to release daily quest lock")
			}
		}()
	}

	if !acquired {
		time.Sleep(250 * time.Millisecond)
		quests, err = svc.sqlSvc.GetDailyQuestsForDay(userID, day)
		if err != nil {
			return nil, svc.sqlSvc.HandleError(err)
		}
		return quests, nil
	}

	// Double check inside the lock.
	quests, err = svc.sqlSvc.GetDailyQuestsForDay(userID, day)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}
	if len(quests) > 0 {
		return quests, nil
	}

	quests = dailyCatalogue(userID, day, now)
	if err := svc.sqlSvc.CreateDailyQuests(quests); err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	return quests, nil
}

// evaluate refreshes one quest's progress from the spend ledger and
// completes it once progress reaches the target. Only the spending limit
// can fail a quest here; blowing it expires the quest on the spot.
func (svc *DailyQuestService) evaluate(ctx context.Context, user *model.User, quest *model.DailyQuest, now time.Time) error {
	if now.After(quest.ExpiresAt) {
		quest.Status = shared.QuestStatusExpired
		quest.UpdatedAt = now
		return svc.sqlSvc.UpdateDailyQuest(quest)
	}

	switch quest.RequirementType {
	case shared.RequirementTransactionCount:
		count, err := svc.spend.CountTodayTransactions(ctx, user, now)
		if err != nil {
			return err
		}
		quest.Progress = float64(count)

	case shared.RequirementTransactionAmount:
		sum, err := svc.spend.TodaySpend(ctx, user, now)
		if err != nil {
			return err
		}
		if sum > quest.RequirementValue {
			// Spending limit blown, the quest fails immediately.
			quest.Status = shared.QuestStatusExpired
			quest.Progress = sum
			quest.UpdatedAt = now
			return svc.sqlSvc.UpdateDailyQuest(quest)
		}
		// Staying at or under the limit is the goal, so the bar is full.
		quest.Progress = quest.RequirementValue

	case shared.RequirementAccountCheck:
		// Viewing the batch is the check-in.
		quest.Progress = quest.RequirementValue

	default:
		return nil
	}

	if quest.Progress >= quest.RequirementValue {
		quest.Status = shared.QuestStatusCompleted
		quest.CompletedAt = &now
	}

	quest.UpdatedAt = now
	if err := svc.sqlSvc.UpdateDailyQuest(quest); err != nil {
		return err
	}

	if quest.Status == shared.QuestStatusCompleted {
		if _, err := svc.progressSvc.Award(user.ID, quest.XPReward, now); err != nil {
			return err
		}
	}

	return nil
}

// Complete claims a daily quest whose requirement was met since the last
// evaluation, verifying the requirement before awarding XP. Quests the
// evaluator already finished conflict here.
func (svc *DailyQuestService) Complete(ctx context.Context, userID, questID string) (*dto.CompleteDailyQuestResponse, error) {
	return svc.complete(ctx, userID, questID, time.Now())
}

func (svc *DailyQuestService) complete(ctx context.Context, userID, questID string, now time.Time) (*dto.CompleteDailyQuestResponse, error) {
	user, err := svc.sqlSvc.GetUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "User not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	quest, err := svc.sqlSvc.GetDailyQuest(userID, questID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "Daily quest not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	if quest.Status != shared.QuestStatusActive {
		return nil, shared.NewConflictError(nil, "Daily quest is already "+quest.Status)
	}

	if now.After(quest.ExpiresAt) {
		quest.Status = shared.QuestStatusExpired
		quest.UpdatedAt = now
		if err := svc.sqlSvc.UpdateDailyQuest(quest); err != nil {
			return nil, svc.sqlSvc.HandleError(err)
		}
		return nil, shared.NewConflictError(nil, "Daily quest has expired")
	}

	met, err := svc.requirementMet(ctx, user, quest, now)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}
	if !met {
		if quest.Status == shared.QuestStatusExpired {
			return nil, shared.NewConflictError(nil, "Daily quest has expired")
		}
		if err := svc.sqlSvc.UpdateDailyQuest(quest); err != nil {
			return nil, svc.sqlSvc.HandleError(err)
		}
		return nil, shared.NewBadRequestError(nil, "Daily quest requirement not met")
	}

	quest.Status = shared.QuestStatusCompleted
	quest.CompletedAt = &now
	quest.UpdatedAt = now
	if err := svc.sqlSvc.UpdateDailyQuest(quest); err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	totalXP, err := svc.progressSvc.Award(userID, quest.XPReward, now)
	if err != nil {
		return nil, err
	}

	updated, err := svc.sqlSvc.GetUser(userID)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	return &dto.CompleteDailyQuestResponse{
		Quest:    dailyQuestToResponse(*quest),
		XPEarned: quest.XPReward,
		DailyXP:  updated.DailyXP,
		TotalXP:  totalXP,
	}, nil
}

// requirementMet checks a quest's requirement at claim time. Meeting the
// target exactly counts as success. The spending limit quest expires on
// the spot when the limit is blown, and reports a full bar otherwise.
func (svc *DailyQuestService) requirementMet(ctx context.Context, user *model.User, quest *model.DailyQuest, now time.Time) (bool, error) {
	switch quest.RequirementType {
	case shared.RequirementTransactionCount:
		count, err := svc.spend.CountTodayTransactions(ctx, user, now)
		if err != nil {
			return false, err
		}
		quest.Progress = float64(count)
		return float64(count) >= quest.RequirementValue, nil

	case shared.RequirementTransactionAmount:
		sum, err := svc.spend.TodaySpend(ctx, user, now)
		if err != nil {
			return false, err
		}
		if sum > quest.RequirementValue {
			quest.Status = shared.QuestStatusExpired
			quest.Progress = sum
			quest.UpdatedAt = now
			if err := svc.sqlSvc.UpdateDailyQuest(quest); err != nil {
				return false, err
			}
			return false, nil
		}
		quest.Progress = quest.RequirementValue
		return true, nil

	case shared.RequirementAccountCheck:
		quest.Progress = quest.RequirementValue
		return true, nil

	default:
		return false, nil
	}
}

// dailyCatalogue is the fixed per-day quest set.
func dailyCatalogue(userID, day string, now time.Time) []model.DailyQuest {
	expires := nextMidnight(now)

	return []model.DailyQuest{
		{
			ID:               newID(),
			UserID:           userID,
			Day:              day,
			Title:            "💳 Make a Transaction",
			Description:      "Record at least one purchase today.",
			RequirementType:  shared.RequirementTransactionCount,
			RequirementValue: 1,
			XPReward:         25,
			Status:           shared.QuestStatusActive,
			ExpiresAt:        expires,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:               newID(),
			UserID:           userID,
			Day:              day,
			Title:            "📊 Account Check-in",
			Description:      "Review your balance and recent activity.",
			RequirementType:  shared.RequirementAccountCheck,
			RequirementValue: 1,
			XPReward:         15,
			Status:           shared.QuestStatusActive,
			ExpiresAt:        expires,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:               newID(),
			UserID:           userID,
			Day:              day,
			Title:            "🎯 Daily Savings Goal",
			Description:      "Keep today's spending under $50.",
			RequirementType:  shared.RequirementTransactionAmount,
			RequirementValue: 50,
			XPReward:         30,
			Status:           shared.QuestStatusActive,
			ExpiresAt:        expires,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

// startExpirySweep expires overdue quests shortly after midnight and then
// keeps sweeping every minute for stragglers.
func (svc *DailyQuestService) startExpirySweep() {
	now := time.Now()
	timer := time.NewTimer(nextMidnight(now).Sub(now))
	defer timer.Stop()

	select {
	case <-timer.C:
		svc.sweepExpired()
	case <-svc.closed:
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			svc.sweepExpired()
		case <-svc.closed:
			return
		}
	}
}

func (svc *DailyQuestService) sweepExpired() {
	expired, err := svc.sqlSvc.ExpireOverdueDailyQuests(time.Now())
	if err != nil {
		log.WithError(err).Error("Daily quest expiry sweep failed")
		return
	}
	if expired > 0 {
		log.WithField("count", expired).Info("Expired overdue daily quests")
	}
}

func dailyQuestToResponse(q model.DailyQuest) dto.DailyQuestResponse {
	resp := dto.DailyQuestResponse{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		RequirementType:  q.RequirementType,
		RequirementValue: q.RequirementValue,
		Progress:         q.Progress,
		XPReward:         q.XPReward,
		Status:           q.Status,
		ExpiresAt:        q.ExpiresAt.Format(time.RFC3339),
	}
	if q.CompletedAt != nil {
		completedAt := q.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}
	return resp
}
