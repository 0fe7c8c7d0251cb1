// Package stage implements the interview finite state machine: the stage
// enum, its forward-only transition graph, and the controller that computes
// the next stage from conversation signals.
package stage

import "fmt"

// Stage is one phase of the interview.
type Stage string

const (
	Introduction           Stage = "introduction"
	TechnicalQuestions     Stage = "technical_questions"
	CodingChallenge        Stage = "coding_challenge"
	CodingChallengeWaiting Stage = "coding_challenge_waiting"
	Feedback               Stage = "feedback"
	BehavioralQuestions    Stage = "behavioral_questions"
	Conclusion             Stage = "conclusion"
)

// validNext is the directed transition graph. All edges point forward; the
// graph is deliberately not fully connected.
var validNext = map[Stage][]Stage{
	Introduction:           {TechnicalQuestions},
	TechnicalQuestions:     {CodingChallenge, BehavioralQuestions},
	CodingChallenge:        {CodingChallengeWaiting, Feedback},
	CodingChallengeWaiting: {Feedback},
	Feedback:               {BehavioralQuestions},
	BehavioralQuestions:    {Conclusion},
	Conclusion:             {},
}

func (s Stage) String() string { return string(s) }

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition reports whether the graph has an edge from s to next.
func (s Stage) CanTransition(next Stage) bool {
	if s == next {
		return true
	}
	for _, candidate := range validNext[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Parse converts a stored string to a Stage.
func Parse(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown interview stage: %q", s)
	}
	return stage, nil
}
