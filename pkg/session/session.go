// Package session owns the interview session document and its persistence:
// the session value struct, the storage gateway contract, a SQLite-backed
// store, and per-session write serialization.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"interviewer/pkg/insight"
	"interviewer/pkg/proto"
	"interviewer/pkg/stage"
)

// ErrSessionNotFound is returned when an explicitly referenced session does
// not exist. Fatal to the turn; no silent session creation behind it.
var ErrSessionNotFound = errors.New("session not found")

// Session status values.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// JobContext describes the position the interview is for.
type JobContext struct {
	Role           string   `json:"job_role"`
	Seniority      string   `json:"seniority_level"`
	RequiredSkills []string `json:"required_skills"`
	Description    string   `json:"job_description"`
	RequiresCoding bool     `json:"requires_coding"`
}

// Session is the interview session document. Created on first turn, mutated
// every turn, never deleted by this core.
type Session struct {
	ID                  string
	UserID              string
	Stage               stage.Stage
	Messages            []proto.Message
	Summary             string
	Insights            *insight.Profile
	PendingArtifacts    map[string]any
	MessageCount        int
	CompactionThreshold int
	Job                 JobContext
	CandidateName       string
	InDigression        bool
	CreatedAt           time.Time
	LastActive          time.Time
	Status              string
}

// New creates a session seeded for the first turn: introduction stage, empty
// summary and insights.
func New(userID string, job JobContext, compactionThreshold int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Stage:               stage.Introduction,
		Insights:            insight.NewProfile(),
		PendingArtifacts:    make(map[string]any),
		CompactionThreshold: compactionThreshold,
		Job:                 job,
		CreatedAt:           now,
		LastActive:          now,
		Status:              StatusActive,
	}
}

// Store is the session gateway contract.
type Store interface {
	// Get returns the session, or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Update replaces the stored session document.
	Update(ctx context.Context, s *Session) error

	// Touch refreshes the session's last-active timestamp.
	Touch(ctx context.Context, sessionID string) error

	// Close releases storage resources.
	Close() error
}
