// Package interviewer drives one full interview turn: load session, classify
// the utterance, prompt the model, dispatch any embedded tool calls, advance
// the stage machine, compact context, and persist the result.
package interviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"interviewer/pkg/config"
	"interviewer/pkg/contextmgr"
	"interviewer/pkg/insight"
	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/proto"
	"interviewer/pkg/session"
	"interviewer/pkg/stage"
	"interviewer/pkg/templates"
	"interviewer/pkg/tools"
)

// Pending-artifact keys. The challenge is cached once per generation event
// and surfaced to the caller exactly once.
const (
	challengeArtifactKey = "current_coding_challenge"
	challengeSurfacedKey = "challenge_surfaced"
)

// digressionNote is injected as a synthetic system message the first time a
// digression is detected in the recent window.
const digressionNote = "CONTEXT: Candidate is digressing from the interview topic. " +
	"Acknowledge their point and gently guide the conversation back to relevant technical topics."

// codingRequestPhrases mark an explicit candidate request to start the
// coding round.
var codingRequestPhrases = []string{
	"start coding challenge", "move to coding", "coding round",
	"give me a coding problem", "let's do coding", "coding question", "coding problem",
}

// hintRequestPhrases mark a request for help while a submission is pending.
var hintRequestPhrases = []string{
	"hint", "guide", "help", "stuck", "unsure", "not sure", "don't know", "can't figure",
}

// TurnInput is one inbound candidate utterance. An empty SessionID starts a
// new interview seeded from Job.
type TurnInput struct {
	SessionID string
	UserID    string
	Utterance string
	Job       *session.JobContext
}

// TurnResult is the outcome of a turn. Artifact carries a freshly surfaced
// coding challenge, nil otherwise.
type TurnResult struct {
	SessionID string
	Response  string
	Stage     stage.Stage
	Artifact  map[string]any
}

// turnState accumulates per-turn side effects that outlive the tool loop.
type turnState struct {
	artifact map[string]any
	toolAI   *proto.Message
}

// Interviewer composes the session store, model gateway, tool router, stage
// controller, and context compactor into the turn loop.
type Interviewer struct {
	cfg       config.Config
	chat      llm.Client
	store     session.Store
	registry  *tools.Registry
	router    *tools.Router
	stages    *stage.Controller
	compactor *contextmgr.Compactor
	locks     *session.Locks
	recorder  metrics.Recorder
	renderer  *templates.Renderer
	logger    *logx.Logger
}

// New creates an interviewer. The chat client drives the conversation; the
// summarizer client backs compaction and insight extraction. A nil recorder
// disables metrics.
func New(cfg config.Config, chat, summarizer llm.Client, store session.Store, registry *tools.Registry, recorder metrics.Recorder) (*Interviewer, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	extractor := insight.NewExtractor(summarizer)
	return &Interviewer{
		cfg:       cfg,
		chat:      chat,
		store:     store,
		registry:  registry,
		router:    tools.NewRouter(registry, cfg.ToolTimeout),
		stages:    stage.NewController(),
		compactor: contextmgr.NewCompactor(summarizer, extractor, cfg.CompactionThreshold),
		locks:     session.NewLocks(),
		recorder:  recorder,
		renderer:  renderer,
		logger:    logx.NewLogger("interviewer"),
	}, nil
}

// RunTurn executes one request/response cycle. Turns on the same session are
// serialized; turns on different sessions run in parallel. The session is
// persisted only after a terminal plain-text reply is produced; a model
// failure degrades to a fixed apology without mutating stored state.
func (iv *Interviewer) RunTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	start := time.Now()

	var s *session.Session
	if in.SessionID != "" {
		release := iv.locks.Acquire(in.SessionID)
		defer release()
		loaded, err := iv.store.Get(ctx, in.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", in.SessionID, err)
		}
		s = loaded
	} else {
		s = session.New(in.UserID, iv.jobContext(in), iv.cfg.CompactionThreshold)
		release := iv.locks.Acquire(s.ID)
		defer release()
		iv.preGenerateChallenge(ctx, s)
		if err := iv.store.Create(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		iv.logger.Info("created session %s for user %s (%s)", s.ID, s.UserID, s.Job.Role)
	}
	priorStage := s.Stage

	lower := strings.ToLower(in.Utterance)

	if detectDigression(in.Utterance, s.Messages, s.Stage) {
		iv.recorder.RecordDigression(s.Stage.String())
		if !hasRecentDigressionNote(s.Messages) {
			s.Messages = append(s.Messages, proto.NewSystemMessage(digressionNote))
			s.MessageCount++
			iv.logger.Info("digression detected in session %s, note injected", s.ID)
		}
		s.InDigression = true
	} else if s.InDigression {
		s.InDigression = false
	}

	s.Messages = append(s.Messages, proto.NewHumanMessage(in.Utterance))
	s.MessageCount++

	// Effective stage shapes the prompt only; the persisted stage is
	// recomputed after the terminal reply.
	effective := s.Stage
	if s.Stage != stage.CodingChallenge && s.Job.RequiresCoding &&
		containsAny(lower, codingRequestPhrases) && iv.cachedChallenge(s) != nil {
		iv.logger.Info("candidate requested coding and a challenge is cached, prompting as %s", stage.CodingChallenge)
		effective = stage.CodingChallenge
	}

	var turn turnState

	if s.Stage == stage.CodingChallengeWaiting && containsAny(lower, hintRequestPhrases) {
		if ch := iv.cachedChallenge(s); ch != nil {
			iv.issueHintCall(ctx, s, ch, &turn)
		}
	}

	response, err := iv.converse(ctx, s, effective, &turn)
	if err != nil {
		if errors.Is(err, ErrTurnAborted) {
			iv.recorder.RecordTurn(priorStage.String(), "aborted", time.Since(start))
			return nil, err
		}
		iv.logger.Error("model gateway failure in session %s: %v", s.ID, err)
		iv.recorder.RecordTurn(priorStage.String(), "degraded", time.Since(start))
		return &TurnResult{SessionID: s.ID, Response: apologyMessage, Stage: priorStage}, nil
	}

	// Surface a pre-generated challenge the first time the coding stage is
	// reached; afterwards it stays cached for submissions and hints.
	if turn.artifact == nil && effective == stage.CodingChallenge {
		if ch := iv.cachedChallenge(s); ch != nil && !iv.challengeSurfaced(s) {
			turn.artifact = ch
			s.PendingArtifacts[challengeSurfacedKey] = true
		}
	}

	lastAI := turn.toolAI
	if lastAI == nil {
		lastAI = proto.LastOfKind(s.Messages, proto.KindAI)
	}
	s.Stage = iv.stages.Next(stage.Input{
		Current:        s.Stage,
		Messages:       s.Messages,
		LastHuman:      in.Utterance,
		LastAI:         lastAI,
		RequiresCoding: s.Job.RequiresCoding,
	})

	if iv.compactor.ShouldCompact(len(s.Messages)) {
		before := len(s.Messages)
		res, cerr := iv.compactor.Compact(ctx, s.Messages, s.Summary, s.Insights, s.MessageCount)
		if cerr != nil {
			iv.logger.Warn("compaction skipped for session %s: %v", s.ID, cerr)
			s.Insights = res.Insights
		} else if res.Compacted {
			s.Messages = res.Messages
			s.Summary = res.Summary
			s.Insights = res.Insights
			s.MessageCount = res.MessageCount
			iv.recorder.RecordCompaction(before - len(res.Messages))
		}
	}

	if s.CandidateName == "" && s.Insights != nil {
		if name := strings.TrimSpace(s.Insights.CandidateDetails["name"]); name != "" {
			s.CandidateName = name
			iv.logger.Info("candidate name for session %s: %s", s.ID, name)
		}
	}

	if s.Stage == stage.Conclusion {
		s.Status = session.StatusCompleted
	}
	s.LastActive = time.Now().UTC()
	if err := iv.store.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to persist session %s: %w", s.ID, err)
	}

	if priorStage != s.Stage {
		iv.logger.Info("session %s stage %s -> %s", s.ID, priorStage, s.Stage)
	}
	iv.recorder.RecordTurn(s.Stage.String(), "success", time.Since(start))

	return &TurnResult{
		SessionID: s.ID,
		Response:  response,
		Stage:     s.Stage,
		Artifact:  turn.artifact,
	}, nil
}

// converse runs the model/tool loop until the model produces a plain-text
// reply or the iteration cap is hit.
func (iv *Interviewer) converse(ctx context.Context, s *session.Session, effective stage.Stage, turn *turnState) (string, error) {
	loopCap := iv.cfg.ToolLoopCap
	if loopCap <= 0 {
		loopCap = config.DefaultToolLoopCap
	}

	for i := 0; i < loopCap; i++ {
		reply, err := iv.complete(ctx, s, effective)
		if err != nil {
			return "", err
		}

		calls := tools.ParseToolCalls(reply)
		if len(calls) == 0 {
			s.Messages = append(s.Messages, proto.NewAIMessage(reply))
			s.MessageCount++
			return reply, nil
		}

		ai := proto.NewAIMessage(reply)
		ai.ToolCalls = calls
		s.Messages = append(s.Messages, ai)
		s.MessageCount++
		aiCopy := ai
		turn.toolAI = &aiCopy

		for _, call := range calls {
			iv.dispatch(ctx, s, call, turn)
			if call.Name == tools.ToolGenerateChallenge && s.Job.RequiresCoding {
				effective = stage.CodingChallenge
			}
		}
	}

	iv.logger.Error("session %s hit the tool loop cap (%d)", s.ID, loopCap)
	return "", ErrTurnAborted
}

// dispatch routes one tool call and appends its result to the transcript. A
// successful challenge generation is additionally cached and surfaced.
func (iv *Interviewer) dispatch(ctx context.Context, s *session.Session, call proto.ToolCall, turn *turnState) {
	iv.injectChallenge(s, &call)

	result := iv.router.Invoke(ctx, call)
	status, _ := result["status"].(string)
	iv.recorder.RecordToolInvocation(call.Name, status)

	if call.Name == tools.ToolGenerateChallenge {
		if ch, ok := result["challenge"].(map[string]any); ok {
			s.PendingArtifacts[challengeArtifactKey] = ch
			s.PendingArtifacts[challengeSurfacedKey] = true
			turn.artifact = ch
		}
	}

	content, err := json.Marshal(result)
	if err != nil {
		content = []byte(`{"status":"error","message":"unserializable tool result"}`)
	}
	s.Messages = append(s.Messages, proto.NewToolMessage(call.Name, call.ID, string(content)))
	s.MessageCount++
}

// complete performs one model gateway call over the current transcript.
func (iv *Interviewer) complete(ctx context.Context, s *session.Session, effective stage.Stage) (string, error) {
	system, err := iv.buildSystemPrompt(s, effective)
	if err != nil {
		return "", err
	}

	msgs := make([]llm.CompletionMessage, 0, len(s.Messages)+1)
	msgs = append(msgs, llm.NewSystemMessage(system))
	msgs = append(msgs, historyToCompletion(s.Messages)...)

	cctx := ctx
	if iv.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, iv.cfg.ModelTimeout)
		defer cancel()
	}

	began := time.Now()
	resp, err := iv.chat.Complete(cctx, llm.CompletionRequest{
		Messages:    msgs,
		Temperature: iv.cfg.ChatModel.Temperature,
		MaxTokens:   iv.cfg.ChatModel.MaxTokens,
	})
	if err != nil {
		iv.recorder.RecordModelRequest(iv.cfg.ChatModel.Name, "error", time.Since(began))
		return "", err
	}
	iv.recorder.RecordModelRequest(iv.cfg.ChatModel.Name, "success", time.Since(began))
	return resp.Content, nil
}

// buildSystemPrompt renders the interviewer persona prompt. When a cached
// challenge is about to be introduced, a focused override prompt is used so
// the model presents the problem instead of generating a new one.
func (iv *Interviewer) buildSystemPrompt(s *session.Session, effective stage.Stage) (string, error) {
	if effective == stage.CodingChallenge && !recentToolResult(s.Messages) {
		if ch := iv.cachedChallenge(s); ch != nil {
			if statement, _ := ch["problem_statement"].(string); statement != "" {
				return iv.renderer.Render(templates.ChallengeIntroTemplate, &templates.InterviewData{
					PersonaName:      iv.cfg.PersonaName,
					ProblemStatement: statement,
				})
			}
		}
	}

	candidate := s.CandidateName
	if candidate == "" {
		candidate = "[Not provided yet]"
	}
	summary := s.Summary
	if summary == "" {
		summary = "No summary available yet."
	}

	return iv.renderer.Render(templates.InterviewSystemTemplate, &templates.InterviewData{
		PersonaName:         iv.cfg.PersonaName,
		CandidateName:       candidate,
		SessionID:           s.ID,
		Stage:               effective.String(),
		JobRole:             s.Job.Role,
		SeniorityLevel:      s.Job.Seniority,
		RequiredSkills:      strings.Join(s.Job.RequiredSkills, ", "),
		JobDescription:      s.Job.Description,
		RequiresCoding:      s.Job.RequiresCoding,
		ConversationSummary: summary,
	})
}

// preGenerateChallenge generates and caches a coding challenge at session
// creation so the coding stage can open without a generation round-trip.
// Failures are tolerated; the model can still generate one mid-interview.
func (iv *Interviewer) preGenerateChallenge(ctx context.Context, s *session.Session) {
	if !s.Job.RequiresCoding || iv.registry.Get(tools.ToolGenerateChallenge) == nil {
		return
	}

	result := iv.router.Invoke(ctx, proto.ToolCall{
		Name: tools.ToolGenerateChallenge,
		Args: map[string]any{
			"job_description":  s.Job.Description,
			"skills_required":  s.Job.RequiredSkills,
			"difficulty_level": "intermediate",
		},
		ID: tools.NewCallID(),
	})
	if ch, ok := result["challenge"].(map[string]any); ok {
		s.PendingArtifacts[challengeArtifactKey] = ch
		iv.logger.Info("pre-generated coding challenge for session %s", s.ID)
	}
}

// issueHintCall synthesizes a hint tool call for the cached challenge
// instead of waiting for the model to emit one. Hints never advance stage.
func (iv *Interviewer) issueHintCall(ctx context.Context, s *session.Session, ch map[string]any, turn *turnState) {
	call := proto.ToolCall{
		Name: tools.ToolGetHint,
		Args: map[string]any{
			"challenge_data": ch,
			"current_code":   lastSubmittedCode(s.Messages),
		},
		ID: tools.NewCallID(),
	}

	payload, err := json.Marshal(call)
	if err != nil {
		return
	}
	ai := proto.NewAIMessage(string(payload))
	ai.ToolCalls = []proto.ToolCall{call}
	s.Messages = append(s.Messages, ai)
	s.MessageCount++
	aiCopy := ai
	turn.toolAI = &aiCopy

	iv.dispatch(ctx, s, call, turn)
}

// injectChallenge backfills the cached challenge into submission and hint
// calls when the model omitted it.
func (iv *Interviewer) injectChallenge(s *session.Session, call *proto.ToolCall) {
	if call.Name != tools.ToolSubmitCode && call.Name != tools.ToolGetHint {
		return
	}
	if call.Args == nil {
		call.Args = make(map[string]any)
	}
	if _, ok := call.Args["challenge"]; ok {
		return
	}
	if _, ok := call.Args["challenge_data"]; ok {
		return
	}
	if ch := iv.cachedChallenge(s); ch != nil {
		call.Args["challenge_data"] = ch
	}
}

func (iv *Interviewer) cachedChallenge(s *session.Session) map[string]any {
	ch, _ := s.PendingArtifacts[challengeArtifactKey].(map[string]any)
	return ch
}

func (iv *Interviewer) challengeSurfaced(s *session.Session) bool {
	surfaced, _ := s.PendingArtifacts[challengeSurfacedKey].(bool)
	return surfaced
}

func (iv *Interviewer) jobContext(in TurnInput) session.JobContext {
	if in.Job != nil {
		return *in.Job
	}
	return session.JobContext{RequiresCoding: true}
}

// hasRecentDigressionNote reports whether a digression note was already
// injected within the last few messages.
func hasRecentDigressionNote(messages []proto.Message) bool {
	start := len(messages) - 3
	if start < 0 {
		start = 0
	}
	for _, m := range messages[start:] {
		if m.Kind == proto.KindSystem && strings.Contains(m.Content, "Candidate is digressing") {
			return true
		}
	}
	return false
}

// lastSubmittedCode returns the candidate code from the most recent
// submission call, or empty when nothing was submitted yet.
func lastSubmittedCode(messages []proto.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Kind != proto.KindAI {
			continue
		}
		for _, call := range messages[i].ToolCalls {
			if call.Name != tools.ToolSubmitCode {
				continue
			}
			if code, ok := call.Args["candidate_code"].(string); ok {
				return code
			}
		}
	}
	return ""
}

// recentToolResult reports whether the model is currently reacting to a tool
// output (the last message, or the one before a trailing human utterance, is
// a tool result).
func recentToolResult(messages []proto.Message) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	if last.Kind == proto.KindTool {
		return true
	}
	if last.Kind == proto.KindHuman && len(messages) > 1 {
		return messages[len(messages)-2].Kind == proto.KindTool
	}
	return false
}

// historyToCompletion converts the transcript into gateway roles. Tool
// results travel as annotated user messages since the gateway assumes no
// structured function-calling primitive.
func historyToCompletion(messages []proto.Message) []llm.CompletionMessage {
	out := make([]llm.CompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Kind {
		case proto.KindSystem:
			out = append(out, llm.NewSystemMessage(m.Content))
		case proto.KindHuman:
			out = append(out, llm.NewUserMessage(m.Content))
		case proto.KindAI:
			out = append(out, llm.NewAssistantMessage(m.Content))
		case proto.KindTool:
			out = append(out, llm.NewUserMessage(fmt.Sprintf("Tool result from %s:\n%s", m.ToolName, m.Content)))
		}
	}
	return out
}
