package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"interviewer/pkg/insight"
	"interviewer/pkg/logx"
	"interviewer/pkg/proto"
	"interviewer/pkg/stage"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	last_active   TEXT NOT NULL,
	status        TEXT NOT NULL,
	metadata_json TEXT NOT NULL,
	messages_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, last_active);
`

// metadata is the JSON document stored alongside the transcript, mirroring
// the session gateway's persisted layout.
type metadata struct {
	Stage               string           `json:"stage"`
	JobRole             string           `json:"job_role"`
	SeniorityLevel      string           `json:"seniority_level"`
	RequiredSkills      []string         `json:"required_skills"`
	JobDescription      string           `json:"job_description"`
	RequiresCoding      bool             `json:"requires_coding"`
	ConversationSummary string           `json:"conversation_summary"`
	MessageCount        int              `json:"message_count"`
	CompactionThreshold int              `json:"compaction_threshold"`
	InterviewInsights   *insight.Profile `json:"interview_insights,omitempty"`
	PendingArtifacts    map[string]any   `json:"pending_artifacts,omitempty"`
	CandidateName       string           `json:"candidate_name,omitempty"`
	InDigression        bool             `json:"in_digression,omitempty"`
}

// SQLiteStore persists sessions in a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open creates or opens the session database at dbPath.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("session-store")
	logger.Info("session database ready at %s", dbPath)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, created_at, last_active, status, metadata_json, messages_json
		 FROM sessions WHERE session_id = ?`, sessionID)

	var (
		id, userID, createdAt, lastActive, status string
		metadataJSON, messagesJSON                string
	)
	if err := row.Scan(&id, &userID, &createdAt, &lastActive, &status, &metadataJSON, &messagesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var meta metadata
	if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode session %s metadata: %w", sessionID, err)
	}
	var messages []proto.Message
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		return nil, fmt.Errorf("failed to decode session %s messages: %w", sessionID, err)
	}

	sess := &Session{
		ID:                  id,
		UserID:              userID,
		Stage:               stage.Stage(meta.Stage),
		Messages:            messages,
		Summary:             meta.ConversationSummary,
		Insights:            meta.InterviewInsights,
		PendingArtifacts:    meta.PendingArtifacts,
		MessageCount:        meta.MessageCount,
		CompactionThreshold: meta.CompactionThreshold,
		Job: JobContext{
			Role:           meta.JobRole,
			Seniority:      meta.SeniorityLevel,
			RequiredSkills: meta.RequiredSkills,
			Description:    meta.JobDescription,
			RequiresCoding: meta.RequiresCoding,
		},
		CandidateName: meta.CandidateName,
		InDigression:  meta.InDigression,
		Status:        status,
	}
	if sess.Insights == nil {
		sess.Insights = insight.NewProfile()
	}
	if sess.PendingArtifacts == nil {
		sess.PendingArtifacts = make(map[string]any)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.LastActive, _ = time.Parse(time.RFC3339Nano, lastActive)
	return sess, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	metaJSON, messagesJSON, err := encode(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, created_at, last_active, status, metadata_json, messages_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID,
		sess.CreatedAt.Format(time.RFC3339Nano), sess.LastActive.Format(time.RFC3339Nano),
		sess.Status, metaJSON, messagesJSON)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", sess.ID, err)
	}
	s.logger.Debug("created session %s for user %s", sess.ID, sess.UserID)
	return nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, sess *Session) error {
	metaJSON, messagesJSON, err := encode(sess)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_active = ?, status = ?, metadata_json = ?, messages_json = ?
		 WHERE session_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sess.Status, metaJSON, messagesJSON, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sess.ID)
	}
	return nil
}

// Touch implements Store.
func (s *SQLiteStore) Touch(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_active = ? WHERE session_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session %s: %w", sessionID, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encode(sess *Session) (metaJSON, messagesJSON string, err error) {
	meta := metadata{
		Stage:               sess.Stage.String(),
		JobRole:             sess.Job.Role,
		SeniorityLevel:      sess.Job.Seniority,
		RequiredSkills:      sess.Job.RequiredSkills,
		JobDescription:      sess.Job.Description,
		RequiresCoding:      sess.Job.RequiresCoding,
		ConversationSummary: sess.Summary,
		MessageCount:        sess.MessageCount,
		CompactionThreshold: sess.CompactionThreshold,
		InterviewInsights:   sess.Insights,
		PendingArtifacts:    sess.PendingArtifacts,
		CandidateName:       sess.CandidateName,
		InDigression:        sess.InDigression,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode session %s metadata: %w", sess.ID, err)
	}
	messages := sess.Messages
	if messages == nil {
		messages = []proto.Message{}
	}
	messageBytes, err := json.Marshal(messages)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode session %s messages: %w", sess.ID, err)
	}
	return string(metaBytes), string(messageBytes), nil
}
