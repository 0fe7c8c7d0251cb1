package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/proto"
	"interviewer/pkg/stage"
)

func testJob() JobContext {
	return JobContext{
		Role:           "Backend Engineer",
		Seniority:      "senior",
		RequiredSkills: []string{"Go", "SQL"},
		Description:    "Build and operate storage services.",
		RequiresCoding: true,
	}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSessionSeeding(t *testing.T) {
	s := New("user-1", testJob(), 20)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, stage.Introduction, s.Stage)
	assert.Empty(t, s.Summary)
	assert.NotNil(t, s.Insights)
	assert.NotNil(t, s.PendingArtifacts)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 20, s.CompactionThreshold)
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	s := New("user-1", testJob(), 20)
	s.Stage = stage.TechnicalQuestions
	s.Summary = "talked about databases"
	s.CandidateName = "Sam"
	s.InDigression = true
	s.MessageCount = 3
	s.Messages = []proto.Message{
		proto.NewSystemMessage("interview setup"),
		proto.NewAIMessage("How are indexes stored?"),
		proto.NewHumanMessage("Usually as B-trees."),
	}
	s.Insights.KeySkills = []string{"SQL"}
	s.PendingArtifacts["generated_coding_challenge"] = map[string]any{"challenge_id": "gen_1"}

	require.NoError(t, store.Create(ctx, s))

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, loaded.UserID)
	assert.Equal(t, stage.TechnicalQuestions, loaded.Stage)
	assert.Equal(t, "talked about databases", loaded.Summary)
	assert.Equal(t, "Sam", loaded.CandidateName)
	assert.True(t, loaded.InDigression)
	assert.Equal(t, 3, loaded.MessageCount)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, proto.KindHuman, loaded.Messages[2].Kind)
	assert.Equal(t, []string{"SQL"}, loaded.Insights.KeySkills)
	assert.Equal(t, testJob(), loaded.Job)

	artifact, ok := loaded.PendingArtifacts["generated_coding_challenge"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gen_1", artifact["challenge_id"])
}

func TestSQLiteGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteUpdate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	s := New("user-1", testJob(), 20)
	require.NoError(t, store.Create(ctx, s))

	s.Stage = stage.Conclusion
	s.Status = StatusCompleted
	s.Messages = append(s.Messages, proto.NewAIMessage("Thanks for your time."))
	require.NoError(t, store.Update(ctx, s))

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, stage.Conclusion, loaded.Stage)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Len(t, loaded.Messages, 1)

	missing := New("user-2", testJob(), 20)
	assert.ErrorIs(t, store.Update(ctx, missing), ErrSessionNotFound)
}

func TestSQLiteTouch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	s := New("user-1", testJob(), 20)
	require.NoError(t, store.Create(ctx, s))
	require.NoError(t, store.Touch(ctx, s.ID))
	assert.ErrorIs(t, store.Touch(ctx, "nope"), ErrSessionNotFound)
}

func TestMemoryStoreCopiesDocuments(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("user-1", testJob(), 20)
	require.NoError(t, store.Create(ctx, s))

	// Mutating the original after Create must not leak into the store.
	s.Summary = "mutated locally"

	loaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Summary)
}

func TestLocksSerializeSameSession(t *testing.T) {
	locks := NewLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("session-a")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLocksIndependentSessions(t *testing.T) {
	locks := NewLocks()

	releaseA := locks.Acquire("session-a")
	done := make(chan struct{})
	go func() {
		releaseB := locks.Acquire("session-b")
		releaseB()
		close(done)
	}()

	// Session B must not be blocked by session A's lock.
	<-done
	releaseA()
}
