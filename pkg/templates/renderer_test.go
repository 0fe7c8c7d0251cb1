package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRendererLoadsAllTemplates(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	assert.Len(t, r.GetAvailableTemplates(), 2)
}

func TestRenderInterviewSystemPrompt(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(InterviewSystemTemplate, &InterviewData{
		PersonaName:         "Dhruv",
		CandidateName:       "Ada",
		SessionID:           "sess-1",
		Stage:               "technical_questions",
		JobRole:             "Backend Engineer",
		SeniorityLevel:      "Senior",
		RequiredSkills:      "Go, SQL",
		JobDescription:      "Build APIs.",
		RequiresCoding:      true,
		ConversationSummary: "No summary available yet.",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "You are Dhruv, an AI technical interviewer")
	assert.Contains(t, out, "Backend Engineer interview for a Senior position")
	assert.Contains(t, out, "Current stage: technical_questions")
	assert.Contains(t, out, "Required skills: Go, SQL")
	assert.Contains(t, out, "Requires coding: true")
	assert.Contains(t, out, "No summary available yet.")
	assert.Contains(t, out, `"name": "generate_coding_challenge_from_jd"`)
}

func TestRenderChallengeIntro(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(ChallengeIntroTemplate, &InterviewData{
		PersonaName:      "Dhruv",
		ProblemStatement: "Reverse a linked list.",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Problem Statement: Reverse a linked list.")
	assert.Contains(t, out, "Do NOT use any tools")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render(PromptTemplate("missing.tpl.md"), &InterviewData{})
	assert.Error(t, err)
}
