package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/shared"
)

func newDailyQuestService(ds *PostgresService, spend dailySpendSource) *DailyQuestService {
	return &DailyQuestService{
		sqlSvc:      ds,
		locks:       &RedisService{},
		progressSvc: newProgressService(ds),
		spend:       spend,
		lockTTL:     time.Second,
		closed:      make(chan struct{}, 1),
	}
}

func dailyTestTime() time.Time {
	return time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC)
}

func dailyQuestIDs(resp *dto.DailyQuestListResponse) []string {
	ids := make([]string, 0, len(resp.Quests))
	for _, q := range resp.Quests {
		ids = append(ids, q.ID)
	}
	return ids
}

func findDailyQuest(t *testing.T, svc *DailyQuestService, userID, requirementType string, now time.Time) string {
	t.Helper()

	quests, err := svc.sqlSvc.GetDailyQuestsForDay(userID, now.Format("2006-01-02"))
	require.NoError(t, err)
	for _, q := range quests {
		if q.RequirementType == requirementType {
			return q.ID
		}
	}
	t.Fatalf("no daily quest with requirement %s", requirementType)
	return ""
}

func TestGetTodayCreatesBatchOnce(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "daily-user")
	svc := newDailyQuestService(ds, &fakeSpendSource{})
	now := dailyTestTime()

	resp, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-10", resp.Day)
	require.Len(t, resp.Quests, 3)

	// Same day, same batch.
	again, err := svc.getToday(context.Background(), user.ID, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, again.Quests, 3)
	assert.ElementsMatch(t, dailyQuestIDs(resp), dailyQuestIDs(again))

	// A new day gets a new batch.
	tomorrow, err := svc.getToday(context.Background(), user.ID, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "2026-04-11", tomorrow.Day)
	assert.NotContains(t, dailyQuestIDs(tomorrow), resp.Quests[0].ID)
}

func TestGetTodayCompletesMetQuests(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "eval-user")
	spend := &fakeSpendSource{count: 2}
	svc := newDailyQuestService(ds, spend)
	now := dailyTestTime()

	resp, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	for _, q := range resp.Quests {
		switch q.RequirementType {
		case shared.RequirementTransactionCount:
			// Two recorded transactions beat a target of one.
			assert.Equal(t, shared.QuestStatusCompleted, q.Status)
			assert.Equal(t, float64(2), q.Progress)
			assert.NotNil(t, q.CompletedAt)
		case shared.RequirementAccountCheck:
			// Viewing the batch is the check-in.
			assert.Equal(t, shared.QuestStatusCompleted, q.Status)
			assert.Equal(t, q.RequirementValue, q.Progress)
		case shared.RequirementTransactionAmount:
			// No spend is under the limit, bar fills to the target.
			assert.Equal(t, shared.QuestStatusCompleted, q.Status)
			assert.Equal(t, float64(50), q.Progress)
		}
	}

	// Every completing evaluation awarded its XP.
	stored, err := ds.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 25+15+30, stored.XP)
	assert.Equal(t, 25+15+30, stored.DailyXP)

	progress, err := ds.GetProgress(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 25+15+30, progress.XP)
}

func TestSpendingLimitUnderLimitClampsToTarget(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "underlimit-user")
	spend := &fakeSpendSource{todaySum: 37}
	svc := newDailyQuestService(ds, spend)
	now := dailyTestTime()

	resp, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	for _, q := range resp.Quests {
		if q.RequirementType == shared.RequirementTransactionAmount {
			assert.Equal(t, shared.QuestStatusCompleted, q.Status)
			assert.Equal(t, float64(50), q.Progress)
			assert.NotNil(t, q.CompletedAt)
		}
	}

	// Claiming after the evaluator finished it conflicts.
	questID := findDailyQuest(t, svc, user.ID, shared.RequirementTransactionAmount, now)
	_, err = svc.complete(context.Background(), user.ID, questID, now)
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestSpendingLimitAtLimitCompletes(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "atlimit-user")
	spend := &fakeSpendSource{todaySum: 50}
	svc := newDailyQuestService(ds, spend)
	now := dailyTestTime()

	resp, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	for _, q := range resp.Quests {
		if q.RequirementType == shared.RequirementTransactionAmount {
			assert.Equal(t, shared.QuestStatusCompleted, q.Status)
			assert.Equal(t, float64(50), q.Progress)
		}
	}
}

func TestSpendingLimitExceededExpiresQuest(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "overspend-user")
	spend := &fakeSpendSource{todaySum: 75}
	svc := newDailyQuestService(ds, spend)
	now := dailyTestTime()

	resp, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	for _, q := range resp.Quests {
		if q.RequirementType == shared.RequirementTransactionAmount {
			assert.Equal(t, shared.QuestStatusExpired, q.Status)
			assert.Equal(t, float64(75), q.Progress)
			assert.Nil(t, q.CompletedAt)
		}
	}
}

func TestCompleteCountQuestRequirementNotMet(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "notmet-user")
	spend := &fakeSpendSource{count: 0}
	svc := newDailyQuestService(ds, spend)
	now := dailyTestTime()

	_, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	questID := findDailyQuest(t, svc, user.ID, shared.RequirementTransactionCount, now)

	_, err = svc.complete(context.Background(), user.ID, questID, now)
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestCompleteClaimsQuestMetSinceEvaluation(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "claim-user")
	spend := &fakeSpendSource{count: 0}
	svc := newDailyQuestService(ds, spend)
	now := dailyTestTime()

	_, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	questID := findDailyQuest(t, svc, user.ID, shared.RequirementTransactionCount, now)

	// A transaction lands after the batch was evaluated.
	spend.count = 1

	result, err := svc.complete(context.Background(), user.ID, questID, now)
	require.NoError(t, err)
	assert.Equal(t, shared.QuestStatusCompleted, result.Quest.Status)
	assert.Equal(t, 25, result.XPEarned)
	// Check-in and savings goal completed during evaluation.
	assert.Equal(t, 15+30+25, result.DailyXP)
	assert.Equal(t, 15+30+25, result.TotalXP)

	// Claiming twice conflicts.
	_, err = svc.complete(context.Background(), user.ID, questID, now)
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestAccountCheckCompletesOnView(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "checkin-user")
	svc := newDailyQuestService(ds, &fakeSpendSource{})
	now := dailyTestTime()

	_, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	questID := findDailyQuest(t, svc, user.ID, shared.RequirementAccountCheck, now)

	quest, err := ds.GetDailyQuest(user.ID, questID)
	require.NoError(t, err)
	assert.Equal(t, shared.QuestStatusCompleted, quest.Status)
	assert.Equal(t, quest.RequirementValue, quest.Progress)
	require.NotNil(t, quest.CompletedAt)

	// The claim endpoint has nothing left to do.
	_, err = svc.complete(context.Background(), user.ID, questID, now)
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestCompleteAfterMidnightExpires(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "late-user")
	spend := &fakeSpendSource{count: 0}
	svc := newDailyQuestService(ds, spend)
	now := dailyTestTime()

	_, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	questID := findDailyQuest(t, svc, user.ID, shared.RequirementTransactionCount, now)

	// Claim attempt lands the next day.
	_, err = svc.complete(context.Background(), user.ID, questID, now.AddDate(0, 0, 1))
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)

	quest, err := ds.GetDailyQuest(user.ID, questID)
	require.NoError(t, err)
	assert.Equal(t, shared.QuestStatusExpired, quest.Status)
	assert.Nil(t, quest.CompletedAt)
}

func TestExpireOverdueDailyQuestsSweep(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "sweep-user")
	svc := newDailyQuestService(ds, &fakeSpendSource{})
	now := dailyTestTime()

	_, err := svc.getToday(context.Background(), user.ID, now)
	require.NoError(t, err)

	// Check-in and savings goal completed on view; only the transaction
	// quest is still active to expire.
	expired, err := ds.ExpireOverdueDailyQuests(now.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	questID := findDailyQuest(t, svc, user.ID, shared.RequirementTransactionCount, now)
	quest, err := ds.GetDailyQuest(user.ID, questID)
	require.NoError(t, err)
	assert.Equal(t, shared.QuestStatusExpired, quest.Status)
}
