package services

import (
	"encoding/json"
	"errors"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/model"
	"github.com/penny-labs/penny_api/shared"
)

// ProgressService owns every XP mutation. The canonical balance lives on
// User, the read-optimized mirror on Progress; both move inside one
// database transaction so they cannot drift apart.
type ProgressService struct {
	appContext.DefaultService

	sqlSvc *PostgresService
}

const PROGRESS_SVC = "progress_svc"

// XP needed per level step.
const levelStep = 500

func (svc ProgressService) Id() string {
	return PROGRESS_SVC
}

func (svc *ProgressService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

// Award adds XP to both records and returns the new total. Also rolls the
// daily counter, streak and xp history forward to "now".
func (svc *ProgressService) Award(userID string, amount int, now time.Time) (int, error) {
	if amount < 0 {
		return 0, shared.NewBadRequestError(nil, "Award amount cannot be negative")
	}

	var totalXP int
	err := svc.sqlSvc.Db().Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}

		rollDailyState(&user, now)

		user.XP += amount
		user.DailyXP += amount
		user.UpdatedAt = now
		totalXP = user.XP

		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		progress, err := loadOrCreateProgress(tx, userID, now)
		if err != nil {
			return err
		}

		progress.XP = user.XP
		progress.Level = user.XP/levelStep + 1
		progress.XPHistory = bucketXPHistory(progress.XPHistory, now, amount)
		progress.UpdatedAt = now

		return tx.Save(progress).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, shared.NewNotFoundError(err, "User not found")
		}
		return 0, svc.sqlSvc.HandleError(err)
	}

	return totalXP, nil
}

// Redeem spends XP from both records symmetrically.
func (svc *ProgressService) Redeem(userID string, amount int) (*dto.RedeemResponse, error) {
	return svc.redeem(userID, amount, time.Now())
}

func (svc *ProgressService) redeem(userID string, amount int, now time.Time) (*dto.RedeemResponse, error) {
	if amount <= 0 {
		return nil, shared.NewBadRequestError(nil, "Redeem amount must be positive")
	}

	var remaining int
	err := svc.sqlSvc.Db().Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}

		if user.XP < amount {
			return errInsufficientBalance
		}

		user.XP -= amount
		user.UpdatedAt = now
		remaining = user.XP

		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		progress, err := loadOrCreateProgress(tx, userID, now)
		if err != nil {
			return err
		}

		progress.XP = user.XP
		progress.Level = user.XP/levelStep + 1
		progress.UpdatedAt = now

		return tx.Save(progress).Error
	})

	if err != nil {
		if errors.Is(err, errInsufficientBalance) {
			return nil, shared.NewBadRequestError(err, "Insufficient XP balance")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "User not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	return &dto.RedeemResponse{
		Redeemed:    amount,
		RemainingXP: remaining,
	}, nil
}

var errInsufficientBalance = errors.New("insufficient xp balance")

// AppendCompletedQuest records a quest id in the user's completed set.
// Duplicate completions keep a single entry.
func (svc *ProgressService) AppendCompletedQuest(userID, questID string) error {
	return svc.sqlSvc.Db().Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}

		var completed []string
		if len(user.CompletedQuests) > 0 {
			if err := json.Unmarshal(user.CompletedQuests, &completed); err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("Resetting unreadable completed quest set")
				completed = nil
			}
		}

		for _, id := range completed {
			if id == questID {
				return nil
			}
		}
		completed = append(completed, questID)

		payload, err := json.Marshal(completed)
		if err != nil {
			return err
		}
		user.CompletedQuests = payload

		return tx.Save(&user).Error
	})
}

// GetProgress returns the merged user + progress view.
func (svc *ProgressService) GetProgress(userID string) (*dto.ProgressResponse, error) {
	user, err := svc.sqlSvc.GetUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "User not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	progress, err := svc.sqlSvc.GetProgress(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svc.sqlSvc.HandleError(err)
		}
		progress = &model.Progress{
			UserID: userID,
			XP:     user.XP,
			Level:  user.XP/levelStep + 1,
		}
	}

	resp := &dto.ProgressResponse{
		UserID:    user.ID,
		XP:        user.XP,
		Level:     progress.Level,
		DailyXP:   user.DailyXP,
		DailyGoal: user.DailyGoal,
		Streak:    user.Streak,
		Hearts:    user.Hearts,
		Gems:      user.Gems,
	}

	if len(progress.Badges) > 0 {
		_ = json.Unmarshal(progress.Badges, &resp.Badges)
	}
	if len(progress.XPHistory) > 0 {
		_ = json.Unmarshal(progress.XPHistory, &resp.XPHistory)
	}
	if len(user.CompletedQuests) > 0 {
		_ = json.Unmarshal(user.CompletedQuests, &resp.CompletedQuests)
	}
	if user.LastActive != nil {
		lastActive := user.LastActive.Format(time.RFC3339)
		resp.LastActive = &lastActive
	}

	return resp, nil
}

func loadOrCreateProgress(tx *gorm.DB, userID string, now time.Time) (*model.Progress, error) {
	var progress model.Progress
	err := tx.Where("user_id = ?", userID).First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	progress = model.Progress{
		ID:        newID(),
		UserID:    userID,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Create(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

// rollDailyState resets the daily counter on the first activity of a new
// day and advances the streak.
func rollDailyState(user *model.User, now time.Time) {
	if user.LastActive == nil {
		user.DailyXP = 0
		user.Streak = 1
		user.LastActive = &now
		return
	}

	switch daysBetween(*user.LastActive, now) {
	case 0:
		// Same day, nothing rolls.
	case 1:
		user.DailyXP = 0
		user.Streak++
	default:
		user.DailyXP = 0
		user.Streak = 1
	}

	user.LastActive = &now
}

func daysBetween(a, b time.Time) int {
	aDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, a.Location())
	bDay := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, b.Location())
	return int(bDay.Sub(aDay).Hours() / 24)
}

// bucketXPHistory accumulates an award into the bucket for now's calendar
// date, appending a new bucket when the date rolls over. History keeps at
// most the newest buckets up to the cap.
func bucketXPHistory(raw json.RawMessage, now time.Time, amount int) json.RawMessage {
	var history []model.XPHistoryEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &history); err != nil {
			log.WithError(err).Warn("Resetting unreadable xp history")
			history = nil
		}
	}

	day := now.Format("2006-01-02")
	if n := len(history); n > 0 && history[n-1].Date == day {
		history[n-1].XP += amount
	} else {
		history = append(history, model.XPHistoryEntry{Date: day, XP: amount})
	}

	if len(history) > shared.XPHistoryLimit {
		history = history[len(history)-shared.XPHistoryLimit:]
	}

	payload, err := json.Marshal(history)
	if err != nil {
		return raw
	}
	return payload
}
