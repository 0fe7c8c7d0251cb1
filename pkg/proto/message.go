// Package proto defines the conversation message protocol shared by the
// orchestrator, stage controller, tools, and session store.
package proto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type MessageKind string

const (
	KindSystem MessageKind = "system" // Instructions and injected context notes
	KindHuman  MessageKind = "human"  // Candidate utterances
	KindAI     MessageKind = "ai"     // Interviewer replies, may carry tool calls
	KindTool   MessageKind = "tool"   // Tool results answering an AI tool call
)

// ToolCall is a structured invocation emitted by the model.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
}

// Message is one entry in the interview transcript.
//
// AI messages may carry ToolCalls; Tool messages carry the answering
// ToolCallID plus the originating tool's Name. Content of a Tool message is
// opaque, tool-defined JSON.
type Message struct {
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolName   string      `json:"tool_name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func NewSystemMessage(content string) Message {
	return Message{Kind: KindSystem, Content: content, CreatedAt: time.Now().UTC()}
}

func NewHumanMessage(content string) Message {
	return Message{Kind: KindHuman, Content: content, CreatedAt: time.Now().UTC()}
}

func NewAIMessage(content string) Message {
	return Message{Kind: KindAI, Content: content, CreatedAt: time.Now().UTC()}
}

// NewToolMessage wraps a tool result as a transcript entry answering callID.
func NewToolMessage(toolName, callID, content string) Message {
	return Message{
		Kind:       KindTool,
		Content:    content,
		ToolName:   toolName,
		ToolCallID: callID,
		CreatedAt:  time.Now().UTC(),
	}
}

// HasToolCalls reports whether an AI message requested tool execution.
func (m *Message) HasToolCalls() bool {
	return m.Kind == KindAI && len(m.ToolCalls) > 0
}

// ToJSON serializes the message for storage.
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a stored message.
func FromJSON(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return m, nil
}

// LastOfKind returns the most recent message of the given kind, or nil.
func LastOfKind(messages []Message, kind MessageKind) *Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Kind == kind {
			return &messages[i]
		}
	}
	return nil
}

// CountKind returns the number of messages of the given kind.
func CountKind(messages []Message, kind MessageKind) int {
	count := 0
	for i := range messages {
		if messages[i].Kind == kind {
			count++
		}
	}
	return count
}

// JoinContents concatenates the lower-cased contents of all messages of a
// kind, used by keyword heuristics.
func JoinContents(messages []Message, kind MessageKind) string {
	var parts []string
	for i := range messages {
		if messages[i].Kind == kind {
			parts = append(parts, strings.ToLower(messages[i].Content))
		}
	}
	return strings.Join(parts, " ")
}

// ValidateToolPairing checks the invariant that every tool call emitted by an
// AI message is answered by exactly one tool message before the next AI turn.
func ValidateToolPairing(messages []Message) error {
	pending := make(map[string]string) // call ID -> tool name
	for i := range messages {
		msg := &messages[i]
		switch msg.Kind {
		case KindAI:
			if len(pending) > 0 {
				return fmt.Errorf("AI message at index %d generated before %d pending tool calls were answered", i, len(pending))
			}
			for _, tc := range msg.ToolCalls {
				pending[tc.ID] = tc.Name
			}
		case KindTool:
			if _, ok := pending[msg.ToolCallID]; !ok {
				return fmt.Errorf("tool message at index %d answers unknown call %q", i, msg.ToolCallID)
			}
			delete(pending, msg.ToolCallID)
		case KindSystem, KindHuman:
			// Neither emits nor answers tool calls.
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d tool calls left unanswered at end of transcript", len(pending))
	}
	return nil
}
