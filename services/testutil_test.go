package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/penny-labs/penny_api/model"
	"github.com/penny-labs/penny_api/shared"
)

func newTestDB(t *testing.T) *PostgresService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	ds := &PostgresService{db: db}
	require.NoError(t, ds.Migrate())

	return ds
}

func newTestUser(t *testing.T, ds *PostgresService, id string) *model.User {
	t.Helper()

	now := time.Now()
	user := &model.User{
		ID:        id,
		Email:     id + "@test.local",
		Username:  id,
		DailyGoal: shared.DefaultDailyGoal,
		Hearts:    5,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, ds.CreateUser(user))
	return user
}

func newProgressService(ds *PostgresService) *ProgressService {
	return &ProgressService{sqlSvc: ds}
}

// fakeGenerator satisfies textGenerator and pennyGenerator.
type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.GenerateJSON(ctx, prompt)
}

// fakeSpendSource satisfies spendSource and dailySpendSource.
type fakeSpendSource struct {
	events   []SpendEvent
	todaySum float64
	count    int
	err      error
}

func (f *fakeSpendSource) RecentSpend(ctx context.Context, user *model.User, limit int) ([]SpendEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeSpendSource) TodaySpend(ctx context.Context, user *model.User, now time.Time) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.todaySum, nil
}

func (f *fakeSpendSource) CountTodayTransactions(ctx context.Context, user *model.User, now time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func validQuestBatchJSON(t *testing.T) string {
	t.Helper()

	question := map[string]interface{}{
		"question":       "What is compound interest?",
		"options":        []string{"Interest on interest", "A bank fee", "A tax bracket", "A loan type"},
		"correct_answer": 0,
		"explanation":    "Interest earned on both the principal and prior interest.",
	}

	quest := map[string]interface{}{
		"title":          "Interest Intro",
		"description":    "Learn how compound interest works.",
		"type":           "Asset Builder",
		"difficulty":     "Easy",
		"context_source": "theory",
		"xp_reward":      50,
		"questions":      []interface{}{question, question, question, question},
	}

	payload, err := json.Marshal([]interface{}{quest, quest, quest})
	require.NoError(t, err)
	return string(payload)
}
