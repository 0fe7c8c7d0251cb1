package stage

import (
	"strings"

	"interviewer/pkg/proto"
)

// Declarative rule tables. Keeping the phrase sets here, out of the control
// flow, lets each heuristic be tested in isolation.

// trigger is one explicit keyword transition out of a stage.
type trigger struct {
	target   Stage
	phrases  []string
	isCoding bool
}

// stageTriggers maps each stage to the explicit user-request transitions it
// honors. Coding-flagged triggers are subject to the feasibility check: a
// role without coding routes to behavioral questions instead.
var stageTriggers = map[Stage][]trigger{
	Introduction: {{
		target: TechnicalQuestions,
		phrases: []string{
			"move to technical", "start technical questions", "technical round",
			"ask me technical questions", "let's do technical",
		},
	}},
	TechnicalQuestions: {{
		target:   CodingChallenge,
		isCoding: true,
		phrases: []string{
			"move to coding", "start coding challenge", "coding round",
			"give me a coding problem", "let's do coding", "start coding",
		},
	}},
	CodingChallenge: {{
		target: Feedback,
		phrases: []string{
			"finished coding", "submitted my code", "done with challenge",
			"evaluate my solution", "coding done", "completed the challenge",
		},
	}},
	CodingChallengeWaiting: {{
		target: Feedback,
		phrases: []string{
			"what's the feedback", "review my code now", "ready for feedback",
		},
	}},
	Feedback: {{
		target: BehavioralQuestions,
		phrases: []string{
			"next question", "move on", "what else", "behavioral questions now",
		},
	}},
	BehavioralQuestions: {{
		target: Conclusion,
		phrases: []string{
			"wrap up", "conclude interview", "that's all for behavioral",
			"any final questions", "end the interview",
		},
	}},
}

// clarificationPhrases mark follow-up questions that must never reset an
// in-progress stage.
var clarificationPhrases = []string{
	"could you explain", "what do you mean", "can you clarify",
	"i'm not sure", "don't understand", "please explain",
	"could you elaborate",
}

// introductionMarkers are self-description signals. The introduction is
// complete once the candidate has produced two substantive messages and any
// marker has appeared.
var introductionMarkers = []string{
	"experience with", "background in", "worked with", "my name is",
	"years of experience", "worked as", "skills in", "specialized in",
	"i am a", "i'm a", "i am", "i'm", "currently working", "previously worked",
	"my background is", "i focus on", "my expertise is", "i have experience",
	"role at", "position as", "studied at", "degree in", "graduated with",
}

// conclusionSignals in recent AI text indicate the question areas are covered.
var conclusionSignals = []string{
	"covered all", "thank you for your time", "appreciate your answers",
	"that concludes", "wrapping up", "final question", "is there anything else",
	"do you have any questions",
}

// interrogativeMarkers classify an AI message as a question for substantive
// exchange counting.
var interrogativeMarkers = []string{"how", "what", "why", "explain", "describe"}

// Substantive answers are longer than this many words.
const substantiveAnswerWords = 15

// minSubstantiveExchanges is the question/answer pair count that completes the
// technical questions stage.
const minSubstantiveExchanges = 3

// minMessagesForConclusion is the minimum conversation length before the
// interview may conclude.
const minMessagesForConclusion = 10

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// IsClarification reports whether the utterance is a clarification-style
// follow-up question.
func IsClarification(utterance string) bool {
	return containsAny(strings.ToLower(utterance), clarificationPhrases)
}

// introductionComplete reports whether the candidate has introduced
// themselves: at least two human messages, any of which carries a
// self-description marker.
func introductionComplete(messages []proto.Message) bool {
	var humanContents []string
	for i := range messages {
		if messages[i].Kind == proto.KindHuman {
			humanContents = append(humanContents, strings.ToLower(messages[i].Content))
		}
	}
	if len(humanContents) < 2 {
		return false
	}
	return containsAny(strings.Join(humanContents, " "), introductionMarkers)
}

// CountSubstantiveExchanges counts AI-question/human-answer pairs where the
// question carries an interrogative marker and the answer exceeds the
// substantive length.
func CountSubstantiveExchanges(messages []proto.Message) int {
	count := 0
	for i := 0; i < len(messages)-1; i++ {
		if messages[i].Kind != proto.KindAI || messages[i+1].Kind != proto.KindHuman {
			continue
		}
		question := strings.ToLower(messages[i].Content)
		answer := messages[i+1].Content
		if containsAny(question, interrogativeMarkers) && len(strings.Fields(answer)) > substantiveAnswerWords {
			count++
		}
	}
	return count
}

// readyForConclusion reports whether the conversation is long enough and the
// recent AI messages carry a closing signal.
func readyForConclusion(messages []proto.Message) bool {
	if len(messages) < minMessagesForConclusion {
		return false
	}
	var aiContents []string
	for i := range messages {
		if messages[i].Kind == proto.KindAI {
			aiContents = append(aiContents, strings.ToLower(messages[i].Content))
		}
	}
	recent := aiContents
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	return containsAny(strings.Join(recent, " "), conclusionSignals)
}
