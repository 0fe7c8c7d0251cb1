package stage

import (
	"strings"

	"interviewer/pkg/logx"
	"interviewer/pkg/proto"
)

// Tool names the controller reacts to. Mirrors the registry in pkg/tools;
// duplicated as constants here to keep this package dependency-free of it.
const (
	generateChallengeTool = "generate_coding_challenge_from_jd"
	hintTool              = "get_hint_for_generated_challenge"
	submitCodeTool        = "submit_code_for_generated_challenge"
)

// Input carries everything a stage decision depends on. Decisions are pure
// functions of this value, so identical inputs always produce identical
// outputs.
type Input struct {
	Current        Stage
	Messages       []proto.Message
	LastHuman      string
	LastAI         *proto.Message
	RequiresCoding bool
}

// Controller computes stage transitions.
type Controller struct {
	logger *logx.Logger
}

// NewController creates a stage controller.
func NewController() *Controller {
	return &Controller{logger: logx.NewLogger("stage")}
}

// Next evaluates the transition rules in precedence order and returns the
// next stage. Apart from logging the coding-signal inconsistency for
// non-coding roles, it is side-effect free.
func (c *Controller) Next(in Input) Stage {
	current := in.Current
	utterance := strings.ToLower(in.LastHuman)

	// Rule 1: a challenge-generation tool call forces the coding stage.
	// Rule 2: hint calls never transition.
	if in.LastAI != nil && in.LastAI.HasToolCalls() {
		for _, call := range in.LastAI.ToolCalls {
			switch call.Name {
			case generateChallengeTool:
				if !in.RequiresCoding {
					c.logger.Warn("challenge generation requested for a role that does not require coding; ignoring stage signal (current %s)", current)
					continue
				}
				if current != CodingChallenge {
					c.logger.Info("challenge generation initiated, moving %s -> %s", current, CodingChallenge)
				}
				return CodingChallenge
			case hintTool:
				c.logger.Debug("hint requested, staying in %s", current)
				return current
			}
		}
	}

	// Clarification follow-ups must not reset an in-progress stage.
	if current != Introduction && IsClarification(utterance) {
		c.logger.Debug("clarification detected, staying in %s", current)
		return current
	}

	// Rule 3: explicit keyword triggers, subject to feasibility.
	for _, trig := range stageTriggers[current] {
		if !containsAny(utterance, trig.phrases) {
			continue
		}
		if trig.isCoding && !in.RequiresCoding {
			c.logger.Info("coding requested but role does not require it, moving %s -> %s", current, BehavioralQuestions)
			return BehavioralQuestions
		}
		c.logger.Info("explicit request, moving %s -> %s", current, trig.target)
		return trig.target
	}

	// Rule 4: stage-specific completion heuristics.
	if next, ok := c.heuristicNext(in); ok {
		return next
	}

	// Rule 5: stay.
	return current
}

func (c *Controller) heuristicNext(in Input) (Stage, bool) {
	switch in.Current {
	case Introduction:
		if introductionComplete(in.Messages) {
			c.logger.Info("introduction complete, moving to %s", TechnicalQuestions)
			return TechnicalQuestions, true
		}

	case TechnicalQuestions:
		if CountSubstantiveExchanges(in.Messages) >= minSubstantiveExchanges {
			if in.RequiresCoding {
				c.logger.Info("technical discussion complete, moving to %s", CodingChallenge)
				return CodingChallenge, true
			}
			c.logger.Info("technical discussion complete, role has no coding, moving to %s", BehavioralQuestions)
			return BehavioralQuestions, true
		}

	case CodingChallenge:
		// Once the challenge has been presented (the generation tool has
		// answered), the session waits for the candidate's submission.
		if lastToolMessageFrom(in.Messages, generateChallengeTool) {
			c.logger.Info("challenge presented, moving to %s", CodingChallengeWaiting)
			return CodingChallengeWaiting, true
		}

	case CodingChallengeWaiting:
		// Leaves only when the submission handler's tool message arrives.
		// Hint results arriving later keep the session waiting.
		if mostRecentToolIs(in.Messages, submitCodeTool) {
			c.logger.Info("submission processed, moving to %s", Feedback)
			return Feedback, true
		}

	case Feedback:
		if in.LastAI != nil && strings.Contains(strings.ToLower(in.LastAI.Content), "ready to move on") {
			c.logger.Info("feedback delivered, moving to %s", BehavioralQuestions)
			return BehavioralQuestions, true
		}

	case BehavioralQuestions:
		if readyForConclusion(in.Messages) {
			c.logger.Info("closing signals present, moving to %s", Conclusion)
			return Conclusion, true
		}

	case Conclusion:
	}
	return "", false
}

// lastToolMessageFrom reports whether any tool message from the named tool
// exists in the history.
func lastToolMessageFrom(messages []proto.Message, toolName string) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Kind == proto.KindTool && messages[i].ToolName == toolName {
			return true
		}
	}
	return false
}

// mostRecentToolIs reports whether the most recent tool message in the
// history came from the named tool.
func mostRecentToolIs(messages []proto.Message, toolName string) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Kind == proto.KindTool {
			return messages[i].ToolName == toolName
		}
	}
	return false
}
