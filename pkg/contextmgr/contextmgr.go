// Package contextmgr bounds conversation growth. When a session's transcript
// exceeds its compaction threshold, the compactor extracts candidate insights
// from the full history, summarizes the older messages into a rolling summary,
// and keeps only the recent tail.
package contextmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"interviewer/pkg/insight"
	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
	"interviewer/pkg/proto"
)

// ErrSummarizationFailure indicates the summarizer model failed or returned
// nothing usable. Callers skip compaction for the turn and retry on the next
// trigger.
var ErrSummarizationFailure = errors.New("summarization failed")

// DefaultThreshold is the message count above which compaction triggers.
const DefaultThreshold = 20

// summarizePromptBudget caps the token count of transcript text embedded in
// one summarization prompt. Overflow drops the oldest messages from the
// prompt; the prior summary still covers them.
const summarizePromptBudget = 8000

const summarizeWithPriorSystem = `You are summarizing an ongoing technical interview.
Below is an existing summary, extracted candidate insights, and new conversation parts to integrate.
Produce a single updated summary that supersedes the existing one.
Focus on preserving technical details, specific examples, and insights about the candidate's abilities.
Respond with the summary text only.`

const summarizeFreshSystem = `You are summarizing a technical interview conversation.
Below are extracted candidate insights and the conversation to summarize.
Focus on preserving technical details, specific examples, and insights about the candidate's abilities.
Respond with the summary text only.`

// Result carries the compacted session state.
type Result struct {
	Messages     []proto.Message
	Summary      string
	Insights     *insight.Profile
	MessageCount int
	Compacted    bool
}

// Compactor performs threshold-triggered summarization.
type Compactor struct {
	model     llm.Client
	extractor *insight.Extractor
	counter   *TokenCounter
	logger    *logx.Logger
	threshold int
}

// NewCompactor creates a compactor using the given summarizer model. A
// non-positive threshold falls back to the default.
func NewCompactor(model llm.Client, extractor *insight.Extractor, threshold int) *Compactor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Compactor{
		model:     model,
		extractor: extractor,
		counter:   NewTokenCounter(),
		logger:    logx.NewLogger("compactor"),
		threshold: threshold,
	}
}

// Threshold returns the configured compaction threshold.
func (c *Compactor) Threshold() int { return c.threshold }

// ShouldCompact reports whether a transcript of this length needs compaction.
func (c *Compactor) ShouldCompact(messageCount int) bool {
	return messageCount > c.threshold
}

// Compact reduces the transcript to its recent tail plus an updated rolling
// summary. Insight extraction runs first over the full history so structured
// facts survive the lossy step. No-op when the transcript is within the
// threshold, which also makes the operation idempotent.
func (c *Compactor) Compact(ctx context.Context, messages []proto.Message, summary string, prior *insight.Profile, messageCount int) (Result, error) {
	unchanged := Result{
		Messages:     messages,
		Summary:      summary,
		Insights:     prior,
		MessageCount: messageCount,
	}

	if len(messages) <= c.threshold {
		return unchanged, nil
	}

	keepCount := c.threshold / 2
	split := len(messages) - keepCount
	summarize := messages[:split]
	keep := messages[split:]

	insights := c.extractor.Extract(ctx, messages, prior)
	unchanged.Insights = insights

	newSummary, err := c.summarize(ctx, summary, insights, summarize)
	if err != nil {
		c.logger.Warn("compaction skipped: %v", err)
		return unchanged, fmt.Errorf("%w: %v", ErrSummarizationFailure, err)
	}

	kept := make([]proto.Message, len(keep))
	copy(kept, keep)

	c.logger.Info("compacted %d messages into summary, keeping %d", len(summarize), len(kept))

	return Result{
		Messages: kept,
		Summary:  newSummary,
		Insights: insights,
		// The summary acts as one virtual message in place of everything
		// summarized away.
		MessageCount: messageCount - len(summarize) + 1,
		Compacted:    true,
	}, nil
}

func (c *Compactor) summarize(ctx context.Context, summary string, insights *insight.Profile, messages []proto.Message) (string, error) {
	transcript := c.fitToBudget(messages)

	insightsText := ""
	if rendered := insights.Render(); rendered != "" {
		insightsText = "CANDIDATE INSIGHTS EXTRACTED SO FAR:\n" + rendered + "\n\n"
	}

	var system, user string
	if summary != "" {
		system = summarizeWithPriorSystem
		user = fmt.Sprintf("EXISTING SUMMARY:\n%s\n\n%sNEW CONVERSATION TO INTEGRATE:\n%s", summary, insightsText, transcript)
	} else {
		system = summarizeFreshSystem
		user = fmt.Sprintf("%sCONVERSATION TO SUMMARIZE:\n%s", insightsText, transcript)
	}

	resp, err := c.model.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(system),
			llm.NewUserMessage(user),
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("summarizer returned empty output")
	}
	return strings.TrimSpace(resp.Content), nil
}

// fitToBudget renders messages for the prompt, dropping the oldest lines when
// the total exceeds the token budget.
func (c *Compactor) fitToBudget(messages []proto.Message) string {
	lines := make([]string, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		if msg.Content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Kind, msg.Content))
	}

	for len(lines) > 1 && c.counter.CountTokens(strings.Join(lines, "\n")) > summarizePromptBudget {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}
