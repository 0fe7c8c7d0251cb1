package interviewer

import (
	"strings"

	"interviewer/pkg/proto"
	"interviewer/pkg/stage"
)

// Digression detection is a keyword classifier, not a model call. An
// utterance counts as a digression when it shares no interview vocabulary
// with the conversation and either wanders into personal or meta-process
// territory, or dodges a direct question with a very short non-answer.

var interviewTerms = []string{
	"experience", "project", "skill", "work", "challenge", "problem", "solution",
	"develop", "implement", "design", "code", "algorithm", "data", "system",
	"architecture", "test", "debug", "optimize", "improve", "performance",
	"team", "collaborate", "communicate", "learn", "technology", "framework",
	"language", "database", "frontend", "backend", "api", "cloud", "devops",
}

var personalDigressionTerms = []string{
	"family", "kids", "child", "vacation", "hobby", "weather", "traffic",
	"lunch", "dinner", "breakfast", "weekend", "movie", "show", "music",
	"sick", "illness", "sorry for", "apologies for", "excuse",
}

var metaInterviewTerms = []string{
	"interview process", "next steps", "salary", "compensation", "benefits",
	"work hours", "remote work", "location", "when will i hear back",
	"how many rounds", "dress code", "company culture", "team size",
}

var directQuestionMarkers = []string{"?", "explain", "describe", "tell me", "how would you"}

const nonResponsiveWordLimit = 5

// detectDigression classifies an utterance against the running conversation.
// Digressions are never flagged during the introduction or before the
// conversation has any substance to digress from.
func detectDigression(utterance string, messages []proto.Message, current stage.Stage) bool {
	if current == stage.Introduction {
		return false
	}
	if len(messages) < 4 {
		return false
	}

	lower := strings.ToLower(utterance)

	hasInterviewTerms := containsAny(lower, interviewTerms)
	hasPersonal := containsAny(lower, personalDigressionTerms)
	hasMeta := containsAny(lower, metaInterviewTerms)

	if !hasInterviewTerms && (hasPersonal || hasMeta) {
		return true
	}

	// A very short reply to a direct question that shares no interview
	// vocabulary is non-responsive.
	if len(strings.Fields(lower)) < nonResponsiveWordLimit && !hasInterviewTerms {
		lastAI := proto.LastOfKind(messages, proto.KindAI)
		if lastAI != nil && containsAny(strings.ToLower(lastAI.Content), directQuestionMarkers) {
			return true
		}
	}

	return false
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
