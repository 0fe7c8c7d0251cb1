package interviewer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/config"
	"interviewer/pkg/llm"
	"interviewer/pkg/proto"
	"interviewer/pkg/session"
	"interviewer/pkg/stage"
	"interviewer/pkg/tools"
)

// stubTool records invocations and returns a canned result.
type stubTool struct {
	name   string
	result map[string]any
	err    error
	calls  []map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Exec(_ context.Context, args map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, args)
	return s.result, s.err
}

func codingJob() *session.JobContext {
	return &session.JobContext{
		Role:           "Backend Engineer",
		Seniority:      "Senior",
		RequiredSkills: []string{"Go", "SQL"},
		Description:    "Design and build backend services.",
		RequiresCoding: true,
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ModelTimeout = 0
	return cfg
}

func newTestInterviewer(t *testing.T, cfg config.Config, chat llm.Client, summarizer llm.Client, registry *tools.Registry) (*Interviewer, *session.MemoryStore) {
	t.Helper()
	if summarizer == nil {
		summarizer = llm.NewMockClient(nil, nil)
	}
	store := session.NewMemoryStore()
	iv, err := New(cfg, chat, summarizer, store, registry, nil)
	require.NoError(t, err)
	return iv, store
}

// seedSession registers a mid-interview session directly in the store.
func seedSession(t *testing.T, store *session.MemoryStore, job *session.JobContext, st stage.Stage, messages []proto.Message) *session.Session {
	t.Helper()
	s := session.New("user-1", *job, config.DefaultCompactionThreshold)
	s.Stage = st
	s.Messages = messages
	s.MessageCount = len(messages)
	require.NoError(t, store.Create(context.Background(), s))
	return s
}

func technicalHistory() []proto.Message {
	return []proto.Message{
		proto.NewHumanMessage("Hi, I'm Ada. I have eight years of experience with Go and databases."),
		proto.NewAIMessage("Great to meet you, Ada. How would you design a rate limiter?"),
		proto.NewHumanMessage("I would implement a token bucket per client keyed in a shared cache, refilled on a timer, so bursts are absorbed without starving other clients."),
		proto.NewAIMessage("Solid answer. What trade-offs does that design make under high contention?"),
	}
}

func toolCallJSON(t *testing.T, call proto.ToolCall) string {
	t.Helper()
	data, err := json.Marshal(call)
	require.NoError(t, err)
	return string(data)
}

func TestNewSessionFirstTurn(t *testing.T) {
	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "Hello! I'm Dhruv, and I'll be conducting your Backend Engineer interview today."},
	}, nil)
	iv, store := newTestInterviewer(t, testConfig(), chat, nil, tools.NewRegistry())

	res, err := iv.RunTurn(context.Background(), TurnInput{
		UserID:    "user-1",
		Utterance: "Hello, I'm ready to start.",
		Job:       codingJob(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, stage.Introduction, res.Stage)
	assert.Contains(t, res.Response, "Dhruv")
	assert.Nil(t, res.Artifact)

	stored, err := store.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
	assert.Equal(t, 2, stored.MessageCount)
	assert.Equal(t, proto.KindHuman, stored.Messages[0].Kind)
	assert.Equal(t, proto.KindAI, stored.Messages[1].Kind)
}

func TestExplicitMissingSessionSurfacesError(t *testing.T) {
	chat := llm.NewMockClient(nil, nil)
	iv, _ := newTestInterviewer(t, testConfig(), chat, nil, tools.NewRegistry())

	_, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: "missing",
		UserID:    "user-1",
		Utterance: "hello",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestCodingRequestGeneratesChallenge(t *testing.T) {
	challenge := map[string]any{
		"challenge_id":      "gen_abc123",
		"problem_statement": "Reverse a linked list.",
	}
	generate := &stubTool{
		name:   tools.ToolGenerateChallenge,
		result: map[string]any{"status": "success", "challenge": challenge},
	}
	registry := tools.NewRegistry()
	registry.MustRegister(generate)

	call := proto.ToolCall{
		Name: tools.ToolGenerateChallenge,
		Args: map[string]any{"job_description": "Design and build backend services.", "skills_required": []any{"Go"}},
		ID:   "call_1",
	}
	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: toolCallJSON(t, call)},
		{Content: "Here is your challenge: reverse a linked list. Take your time."},
	}, nil)

	iv, store := newTestInterviewer(t, testConfig(), chat, nil, registry)
	seeded := seedSession(t, store, codingJob(), stage.TechnicalQuestions, technicalHistory())

	res, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "let's move to coding",
	})
	require.NoError(t, err)

	assert.Equal(t, stage.CodingChallenge, res.Stage)
	assert.Equal(t, challenge, res.Artifact)
	assert.Len(t, generate.calls, 1)
	assert.Contains(t, res.Response, "reverse a linked list")

	stored, err := store.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, stage.CodingChallenge, stored.Stage)
	assert.Equal(t, challenge, stored.PendingArtifacts[challengeArtifactKey])
	assert.Equal(t, true, stored.PendingArtifacts[challengeSurfacedKey])
}

func TestNonCodingRoleReroutesToBehavioral(t *testing.T) {
	generate := &stubTool{name: tools.ToolGenerateChallenge, result: map[string]any{"status": "success"}}
	registry := tools.NewRegistry()
	registry.MustRegister(generate)

	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "We can skip coding for this role. Tell me about a conflict you resolved on a team."},
	}, nil)

	job := codingJob()
	job.RequiresCoding = false

	iv, store := newTestInterviewer(t, testConfig(), chat, nil, registry)
	seeded := seedSession(t, store, job, stage.TechnicalQuestions, technicalHistory())

	res, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "can we move to coding now",
	})
	require.NoError(t, err)

	assert.Equal(t, stage.BehavioralQuestions, res.Stage)
	assert.Nil(t, res.Artifact)
	assert.Empty(t, generate.calls)
}

func TestMalformedToolCallTreatedAsPlainText(t *testing.T) {
	generate := &stubTool{name: tools.ToolGenerateChallenge, result: map[string]any{"status": "success"}}
	registry := tools.NewRegistry()
	registry.MustRegister(generate)

	malformed := `{"name": "generate_coding_challenge_from_jd", "args": {broken`
	chat := llm.NewMockClient([]llm.CompletionResponse{{Content: malformed}}, nil)

	iv, store := newTestInterviewer(t, testConfig(), chat, nil, registry)
	seeded := seedSession(t, store, codingJob(), stage.TechnicalQuestions, technicalHistory())

	res, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "Could you repeat the question about the database schema design?",
	})
	require.NoError(t, err)

	assert.Equal(t, malformed, res.Response)
	assert.Equal(t, stage.TechnicalQuestions, res.Stage)
	assert.Empty(t, generate.calls)
}

func TestHintWhileWaitingKeepsStage(t *testing.T) {
	hint := &stubTool{
		name:   tools.ToolGetHint,
		result: map[string]any{"status": "success", "hints": []any{"Think about a two-pointer walk."}},
	}
	registry := tools.NewRegistry()
	registry.MustRegister(hint)

	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "Here's a nudge: think about walking the list with two pointers."},
	}, nil)

	iv, store := newTestInterviewer(t, testConfig(), chat, nil, registry)
	seeded := seedSession(t, store, codingJob(), stage.CodingChallengeWaiting, technicalHistory())
	seeded.PendingArtifacts[challengeArtifactKey] = map[string]any{
		"challenge_id":      "gen_abc123",
		"problem_statement": "Reverse a linked list.",
	}
	seeded.PendingArtifacts[challengeSurfacedKey] = true
	require.NoError(t, store.Update(context.Background(), seeded))

	res, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "I'm stuck, can I get a hint?",
	})
	require.NoError(t, err)

	assert.Equal(t, stage.CodingChallengeWaiting, res.Stage)
	assert.Contains(t, res.Response, "two pointers")
	assert.Nil(t, res.Artifact)

	require.Len(t, hint.calls, 1)
	assert.Contains(t, hint.calls[0], "challenge_data")
}

func TestModelFailureDegradesToApology(t *testing.T) {
	chat := llm.NewMockClient(nil, []error{llm.ErrModelUnavailable})
	iv, store := newTestInterviewer(t, testConfig(), chat, nil, tools.NewRegistry())
	seeded := seedSession(t, store, codingJob(), stage.TechnicalQuestions, technicalHistory())

	res, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "Here is my answer about the sharded database design.",
	})
	require.NoError(t, err)

	assert.Equal(t, apologyMessage, res.Response)
	assert.Equal(t, stage.TechnicalQuestions, res.Stage)

	// Nothing from the failed turn is persisted.
	stored, err := store.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, len(technicalHistory()))
	assert.Equal(t, stage.TechnicalQuestions, stored.Stage)
}

func TestToolLoopCapAbortsTurn(t *testing.T) {
	generate := &stubTool{
		name:   tools.ToolGenerateChallenge,
		result: map[string]any{"status": "success", "challenge": map[string]any{"challenge_id": "gen_1"}},
	}
	registry := tools.NewRegistry()
	registry.MustRegister(generate)

	call := proto.ToolCall{Name: tools.ToolGenerateChallenge, Args: map[string]any{}, ID: "call_1"}
	loop := toolCallJSON(t, call)
	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: loop}, {Content: loop}, {Content: loop},
	}, nil)

	cfg := testConfig()
	cfg.ToolLoopCap = 2

	iv, store := newTestInterviewer(t, cfg, chat, nil, registry)
	seeded := seedSession(t, store, codingJob(), stage.CodingChallenge, technicalHistory())

	_, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "please generate the coding problem",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTurnAborted)

	// The aborted turn's partial state is not persisted.
	stored, err := store.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, len(technicalHistory()))
}

func TestDigressionNoteInjectedOnce(t *testing.T) {
	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "That sounds nice! Let's get back to the system we were discussing."},
		{Content: "No problem at all. Back to the design question."},
		{Content: "Good point about caching layers."},
	}, nil)

	iv, store := newTestInterviewer(t, testConfig(), chat, nil, tools.NewRegistry())
	seeded := seedSession(t, store, codingJob(), stage.TechnicalQuestions, technicalHistory())

	res, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "my family vacation last weekend was amazing",
	})
	require.NoError(t, err)
	assert.Equal(t, stage.TechnicalQuestions, res.Stage)

	stored, err := store.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.True(t, stored.InDigression)
	assert.Equal(t, 1, countDigressionNotes(stored.Messages))

	// A second digression within the recent window does not add another note.
	_, err = iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "sorry for the tangent, traffic was terrible",
	})
	require.NoError(t, err)

	stored, err = store.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.True(t, stored.InDigression)
	assert.Equal(t, 1, countDigressionNotes(stored.Messages))

	// Returning on-topic clears the flag.
	_, err = iv.RunTurn(context.Background(), TurnInput{
		SessionID: seeded.ID,
		UserID:    "user-1",
		Utterance: "Right, so for caching I would add a read-through layer in front of the database.",
	})
	require.NoError(t, err)

	stored, err = store.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.False(t, stored.InDigression)
}

func countDigressionNotes(messages []proto.Message) int {
	n := 0
	for _, m := range messages {
		if m.Kind == proto.KindSystem && m.Content == digressionNote {
			n++
		}
	}
	return n
}

func TestCompactionRunsPastThreshold(t *testing.T) {
	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "Thanks, noted. Next question: how do you approach schema migrations?"},
	}, nil)
	summarizer := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"candidate_details": {"name": "Ada"}, "key_skills": ["Go"]}`},
		{Content: "Condensed interview summary."},
	}, nil)

	cfg := testConfig()
	cfg.CompactionThreshold = 6

	registry := tools.NewRegistry()
	store := session.NewMemoryStore()
	iv, err := New(cfg, chat, summarizer, store, registry, nil)
	require.NoError(t, err)

	history := technicalHistory()
	history = append(history,
		proto.NewHumanMessage("I would also add integration tests around the storage layer to catch regressions."),
		proto.NewAIMessage("Good. How do you keep test data realistic?"),
		proto.NewHumanMessage("Seed fixtures from anonymized production samples and refresh them on a schedule."),
		proto.NewAIMessage("Can you describe a debugging war story from production?"),
	)

	s := session.New("user-1", *codingJob(), cfg.CompactionThreshold)
	s.Stage = stage.TechnicalQuestions
	s.Messages = history
	s.MessageCount = len(history)
	require.NoError(t, store.Create(context.Background(), s))

	res, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: s.ID,
		UserID:    "user-1",
		Utterance: "The key skill there was systematic performance profiling under load.",
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	stored, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)

	// 8 seeded + human + AI = 10, compacted to threshold/2 = 3 kept.
	assert.Len(t, stored.Messages, 3)
	assert.Equal(t, "Condensed interview summary.", stored.Summary)
	assert.Equal(t, 10-7+1, stored.MessageCount)

	// Extraction ran before summarization and the name was captured.
	assert.Equal(t, "Ada", stored.CandidateName)
}

func TestPreGeneratedChallengeSurfacedExactlyOnce(t *testing.T) {
	challenge := map[string]any{
		"challenge_id":      "gen_pre1",
		"problem_statement": "Implement an LRU cache.",
	}
	generate := &stubTool{
		name:   tools.ToolGenerateChallenge,
		result: map[string]any{"status": "success", "challenge": challenge},
	}
	registry := tools.NewRegistry()
	registry.MustRegister(generate)

	chat := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "Welcome! I'm Dhruv. Tell me a bit about yourself."},
		{Content: "Great, let's move on to the coding exercise. I have one ready."},
		{Content: "Take your time with the cache implementation."},
	}, nil)

	iv, _ := newTestInterviewer(t, testConfig(), chat, nil, registry)

	first, err := iv.RunTurn(context.Background(), TurnInput{
		UserID:    "user-1",
		Utterance: "Hi, I'm Ada, I have years of experience with Go backends.",
		Job:       codingJob(),
	})
	require.NoError(t, err)
	require.Len(t, generate.calls, 1, "challenge is pre-generated at session creation")
	assert.Nil(t, first.Artifact, "not surfaced during the introduction")

	second, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: first.SessionID,
		UserID:    "user-1",
		Utterance: "sounds good, let's move to coding",
	})
	require.NoError(t, err)
	assert.Equal(t, challenge, second.Artifact)
	assert.Len(t, generate.calls, 1, "cached challenge is reused, not regenerated")

	// The introduction prompt for the cached challenge carries the problem.
	prompts := chat.Requests()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1].Messages[0].Content, "Problem Statement: Implement an LRU cache.")

	third, err := iv.RunTurn(context.Background(), TurnInput{
		SessionID: first.SessionID,
		UserID:    "user-1",
		Utterance: "okay",
	})
	require.NoError(t, err)
	assert.Nil(t, third.Artifact, "an artifact is surfaced exactly once")
}

func TestConcurrentTurnsOnSameSessionSerialize(t *testing.T) {
	responses := make([]llm.CompletionResponse, 10)
	for i := range responses {
		responses[i] = llm.CompletionResponse{Content: "Understood, let's continue with the design discussion."}
	}
	chat := llm.NewMockClient(responses, nil)

	iv, store := newTestInterviewer(t, testConfig(), chat, nil, tools.NewRegistry())
	seeded := seedSession(t, store, codingJob(), stage.TechnicalQuestions, technicalHistory())

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := iv.RunTurn(context.Background(), TurnInput{
				SessionID: seeded.ID,
				UserID:    "user-1",
				Utterance: "Another detail about the system architecture and its data model.",
			})
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	stored, err := store.Get(context.Background(), seeded.ID)
	require.NoError(t, err)

	// Every turn appended exactly one human and one AI message.
	assert.Len(t, stored.Messages, len(technicalHistory())+20)
	assert.Equal(t, len(technicalHistory())+20, stored.MessageCount)
}

func TestTurnAbortedErrorIsDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrTurnAborted, llm.ErrModelUnavailable))
	assert.False(t, errors.Is(ErrTurnAborted, session.ErrSessionNotFound))
}
