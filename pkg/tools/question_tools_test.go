package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/llm"
)

func TestQuestionTool(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"question": "How does a goroutine differ from an OS thread?", "expected_topics": ["scheduling", "stack size"], "follow_up_questions": ["When would you use a sync.Pool?"]}`},
	}, nil)
	tool := NewQuestionTool(mock)

	result, err := tool.Exec(context.Background(), map[string]any{
		"job_role":           "Backend Engineer",
		"skill_areas":        []any{"Go", "Concurrency"},
		"previous_questions": []any{"What is a channel?"},
	})
	require.NoError(t, err)
	assert.Contains(t, result["question"], "goroutine")
	assert.Equal(t, "Backend Engineer", result["job_role"])
	assert.Equal(t, "intermediate", result["requested_difficulty"])

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "What is a channel?")
}

func TestQuestionToolFallsBack(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "no json here"},
	}, nil)
	tool := NewQuestionTool(mock)

	result, err := tool.Exec(context.Background(), map[string]any{
		"job_role": "SRE",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result["question"])
	assert.Equal(t, true, result["generated_from_fallback"])
}

func TestAnalyzeTool(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "```json\n{\"main_points\": [\"uses indexes\"], \"key_concepts\": [\"B-tree\"], \"technical_accuracy\": 8, \"depth_of_knowledge\": 7, \"relevance_score\": 9, \"misconceptions\": [], \"missing_topics\": [\"covering indexes\"], \"suggested_follow_up\": \"How do composite indexes change this?\"}\n```"},
	}, nil)
	tool := NewAnalyzeTool(mock)

	result, err := tool.Exec(context.Background(), map[string]any{
		"question": "How would you speed up a slow query?",
		"response": "I would add an index on the filtered column.",
		"job_role": "Database Engineer",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(8), result["technical_accuracy"])
	assert.Equal(t, "How would you speed up a slow query?", result["question"])
}

func TestAnalyzeToolNeutralFallback(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{assert.AnError})
	tool := NewAnalyzeTool(mock)

	result, err := tool.Exec(context.Background(), map[string]any{
		"question": "q",
		"response": "r",
		"job_role": "SRE",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result["technical_accuracy"])
	assert.Equal(t, true, result["generated_from_error"])
}
