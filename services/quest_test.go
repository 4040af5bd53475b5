package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-labs/penny_api/model"
	"github.com/penny-labs/penny_api/shared"
)

func newQuestService(ds *PostgresService, gen textGenerator, spend spendSource) *QuestService {
	return &QuestService{
		sqlSvc:       ds,
		locks:        &RedisService{},
		progressSvc:  newProgressService(ds),
		generator:    gen,
		spend:        spend,
		lockTTL:      time.Second,
		pollInterval: 5 * time.Millisecond,
		waitTimeout:  time.Second,
	}
}

// fakeLocker reports a fixed acquisition outcome so tests can steer a
// service onto the winner or loser path of the generation race.
type fakeLocker struct {
	acquired bool
	acquires int
	releases int
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.acquires++
	return f.acquired, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	f.releases++
	return nil
}

func TestListActiveGeneratesBatch(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "gen-user")

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	spend := &fakeSpendSource{events: []SpendEvent{
		{Amount: 12.50, Description: "Coffee", OccurredAt: time.Now()},
	}}
	svc := newQuestService(ds, gen, spend)

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, resp.Generated)
	require.Len(t, resp.Quests, shared.QuestBatchSize)
	for _, q := range resp.Quests {
		assert.Equal(t, shared.QuestStatusActive, q.Status)
		assert.Len(t, q.Questions, shared.QuestQuestionCount)
	}

	// Second read serves the persisted batch without another generation.
	resp, err = svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, resp.Generated)
	assert.Len(t, resp.Quests, shared.QuestBatchSize)
	assert.Equal(t, 1, gen.calls)
}

func TestListActiveFallsBackOnGenerationFailure(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "fallback-user")

	gen := &fakeGenerator{err: ErrGenerationExhausted}
	svc := newQuestService(ds, gen, &fakeSpendSource{})

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, resp.Quests, 1)
	assert.Equal(t, shared.QuestTypeGeneral, resp.Quests[0].Type)
	assert.Len(t, resp.Quests[0].Questions, shared.QuestQuestionCount)
}

func TestListActiveFallsBackOnInvalidContent(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "invalid-user")

	gen := &fakeGenerator{response: "I cannot generate quests today."}
	svc := newQuestService(ds, gen, &fakeSpendSource{})

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, resp.Quests, 1)
	assert.Equal(t, "Budgeting Bootcamp", resp.Quests[0].Title)
}

func TestListActivePurgesDecayedQuests(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "decay-user")

	// A quest whose question column decayed to an empty array.
	broken := model.Quest{
		ID:        "broken-quest",
		UserID:    user.ID,
		Title:     "Broken",
		Questions: json.RawMessage(`[]`),
		Status:    shared.QuestStatusActive,
	}
	require.NoError(t, ds.CreateQuests([]model.Quest{broken}))

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	svc := newQuestService(ds, gen, &fakeSpendSource{})

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, resp.Generated)
	require.Len(t, resp.Quests, shared.QuestBatchSize)
	for _, q := range resp.Quests {
		assert.NotEqual(t, "broken-quest", q.ID)
	}

	_, err = ds.GetQuest(user.ID, "broken-quest")
	require.Error(t, err)
}

func TestListActiveUnknownUser(t *testing.T) {
	ds := newTestDB(t)
	svc := newQuestService(ds, &fakeGenerator{}, &fakeSpendSource{})

	_, err := svc.ListActive(context.Background(), "nobody")
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)
}

func TestCompleteQuest(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "complete-user")

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	svc := newQuestService(ds, gen, &fakeSpendSource{})

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	questID := resp.Quests[0].ID

	result, err := svc.Complete(context.Background(), user.ID, questID)
	require.NoError(t, err)
	assert.Equal(t, shared.QuestStatusCompleted, result.Quest.Status)
	assert.Equal(t, 50, result.XPEarned)
	assert.Equal(t, 50, result.TotalXP)

	// XP landed on both records.
	stored, _ := ds.GetUser(user.ID)
	progress, _ := ds.GetProgress(user.ID)
	assert.Equal(t, 50, stored.XP)
	assert.Equal(t, 50, progress.XP)

	// The quest id joined the completed set.
	var completed []string
	require.NoError(t, json.Unmarshal(stored.CompletedQuests, &completed))
	assert.Contains(t, completed, questID)
}

func TestCompleteQuestTwiceConflicts(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "twice-user")

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	svc := newQuestService(ds, gen, &fakeSpendSource{})

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	questID := resp.Quests[0].ID

	_, err = svc.Complete(context.Background(), user.ID, questID)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), user.ID, questID)
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestCompleteQuestNotFound(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "missing-user")
	svc := newQuestService(ds, &fakeGenerator{}, &fakeSpendSource{})

	_, err := svc.Complete(context.Background(), user.ID, "no-such-quest")
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)
}

func TestResetDeletesActiveQuests(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "reset-user")

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	svc := newQuestService(ds, gen, &fakeSpendSource{})

	_, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)

	deleted, err := svc.Reset(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(shared.QuestBatchSize), deleted)

	quests, err := ds.GetActiveQuests(user.ID)
	require.NoError(t, err)
	assert.Empty(t, quests)

	// The next list regenerates.
	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, resp.Generated)
	assert.Equal(t, 2, gen.calls)
}

func TestListActiveWaitsForConcurrentGeneration(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "race-loser")

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	svc := newQuestService(ds, gen, &fakeSpendSource{})
	svc.locks = &fakeLocker{acquired: false}

	// Another instance holds the lock and persists the batch mid-wait.
	go func() {
		time.Sleep(25 * time.Millisecond)
		winner := model.Quest{
			ID:        "winner-quest",
			UserID:    user.ID,
			Title:     "Interest Intuition",
			Questions: json.RawMessage(`[]`),
			Status:    shared.QuestStatusActive,
		}
		_ = ds.CreateQuests([]model.Quest{winner})
	}()

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, resp.Generated)
	require.Len(t, resp.Quests, 1)
	assert.Equal(t, "winner-quest", resp.Quests[0].ID)
	assert.Equal(t, 0, gen.calls)
}

func TestListActiveGeneratesWhenLockHolderStalls(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "race-stalled")

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	svc := newQuestService(ds, gen, &fakeSpendSource{})
	svc.locks = &fakeLocker{acquired: false}
	svc.waitTimeout = 20 * time.Millisecond

	// Nothing ever lands, so the wait budget runs out and this caller
	// generates its own batch rather than returning nothing.
	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, resp.Generated)
	require.Len(t, resp.Quests, shared.QuestBatchSize)
	assert.Equal(t, 1, gen.calls)
}

func TestBuildQuestPromptIncludesSpendContext(t *testing.T) {
	events := []SpendEvent{
		{Amount: 9.99, Description: "Lunch", OccurredAt: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)},
	}

	prompt := buildQuestPrompt(events)
	assert.Contains(t, prompt, "$9.99 Lunch on 2026-02-03")
	assert.Contains(t, prompt, "exactly 3 learning quests")

	empty := buildQuestPrompt(nil)
	assert.Contains(t, empty, "No spending history is available")
}

func TestSpendSourceFailureStillGenerates(t *testing.T) {
	ds := newTestDB(t)
	user := newTestUser(t, ds, "nospend-user")

	gen := &fakeGenerator{response: validQuestBatchJSON(t)}
	spend := &fakeSpendSource{err: errors.New("ledger down")}
	svc := newQuestService(ds, gen, spend)

	resp, err := svc.ListActive(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, resp.Quests, shared.QuestBatchSize)
}
