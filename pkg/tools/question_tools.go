package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
)

const questionGenerationPrompt = `You are preparing the next question for a technical interview.

Job role: %s
Skill areas: %s
Difficulty level: %s
%s
Respond with ONLY a JSON object with keys:
- "question": the question to ask
- "expected_topics": array of topics a strong answer covers
- "follow_up_questions": array of 2-3 follow-ups

Do not repeat any previously asked question.`

// QuestionTool generates a contextually relevant interview question.
type QuestionTool struct {
	model  llm.Client
	logger *logx.Logger
}

// NewQuestionTool creates the question-generation tool backed by the given
// model.
func NewQuestionTool(model llm.Client) *QuestionTool {
	return &QuestionTool{model: model, logger: logx.NewLogger("tool-question")}
}

func (t *QuestionTool) Name() string { return ToolGenerateQuestion }

func (t *QuestionTool) Description() string {
	return "Generate an interview question for the job role, skill areas, and difficulty, avoiding repeats."
}

func (t *QuestionTool) Exec(ctx context.Context, args map[string]any) (map[string]any, error) {
	jobRole := argString(args, "job_role")
	skills := argStringSlice(args, "skill_areas")
	difficulty := argStringDefault(args, "difficulty_level", "intermediate")
	previous := argStringSlice(args, "previous_questions")

	t.logger.Info("generating question: role=%s difficulty=%s", jobRole, difficulty)

	previousSection := ""
	if len(previous) > 0 {
		previousSection = "Previously asked:\n- " + strings.Join(previous, "\n- ") + "\n"
	}
	prompt := fmt.Sprintf(questionGenerationPrompt, jobRole, strings.Join(skills, ", "), difficulty, previousSection)

	resp, err := t.model.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.CompletionMessage{llm.NewUserMessage(prompt)},
		Temperature: 0.4,
		MaxTokens:   1024,
	})
	if err != nil {
		t.logger.Warn("question generation failed, using fallback: %v", err)
		return fallbackQuestion(jobRole, difficulty, skills), nil
	}

	var result map[string]any
	if jsonErr := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &result); jsonErr != nil {
		t.logger.Warn("question generation returned unparseable JSON: %v", jsonErr)
		return fallbackQuestion(jobRole, difficulty, skills), nil
	}
	if argString(result, "question") == "" {
		return fallbackQuestion(jobRole, difficulty, skills), nil
	}

	result["job_role"] = jobRole
	result["requested_difficulty"] = difficulty
	result["requested_skill_areas"] = skills
	return result, nil
}

func fallbackQuestion(jobRole, difficulty string, skills []string) map[string]any {
	return map[string]any{
		"question":        "Could you describe a challenging technical problem you've solved and how you approached it?",
		"expected_topics": []any{"problem-solving", "technical skills", "analytical thinking"},
		"follow_up_questions": []any{
			"What tools or technologies did you use in your solution?",
			"What would you do differently if you faced the same problem again?",
		},
		"job_role":                jobRole,
		"requested_difficulty":    difficulty,
		"requested_skill_areas":   skills,
		"generated_from_fallback": true,
	}
}

const responseAnalysisPrompt = `You are evaluating an interview answer.

Job role: %s
Question: %s
Candidate's answer: %s

Respond with ONLY a JSON object with keys:
- "main_points": array of the answer's main points
- "key_concepts": array of technical concepts the candidate demonstrated
- "technical_accuracy": integer 1-10
- "depth_of_knowledge": integer 1-10
- "relevance_score": integer 1-10
- "misconceptions": array of errors or misconceptions, empty if none
- "missing_topics": array of expected topics the answer skipped
- "suggested_follow_up": one follow-up question probing the weakest area`

// AnalyzeTool scores a question/answer pair.
type AnalyzeTool struct {
	model  llm.Client
	logger *logx.Logger
}

// NewAnalyzeTool creates the response-analysis tool backed by the given model.
func NewAnalyzeTool(model llm.Client) *AnalyzeTool {
	return &AnalyzeTool{model: model, logger: logx.NewLogger("tool-analyze")}
}

func (t *AnalyzeTool) Name() string { return ToolAnalyzeResponse }

func (t *AnalyzeTool) Description() string {
	return "Analyze a candidate's answer to an interview question for accuracy, depth, and gaps."
}

func (t *AnalyzeTool) Exec(ctx context.Context, args map[string]any) (map[string]any, error) {
	question := argString(args, "question")
	response := argString(args, "response")
	jobRole := argString(args, "job_role")

	t.logger.Info("analyzing response for role=%s", jobRole)

	prompt := fmt.Sprintf(responseAnalysisPrompt, jobRole, question, response)
	resp, err := t.model.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.CompletionMessage{llm.NewUserMessage(prompt)},
		Temperature: 0.2,
		MaxTokens:   2048,
	})
	if err != nil {
		t.logger.Warn("response analysis failed, using neutral scores: %v", err)
		return fallbackAnalysis(question, jobRole), nil
	}

	var result map[string]any
	if jsonErr := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &result); jsonErr != nil {
		t.logger.Warn("response analysis returned unparseable JSON: %v", jsonErr)
		return fallbackAnalysis(question, jobRole), nil
	}

	result["question"] = question
	result["job_role"] = jobRole
	return result, nil
}

// fallbackAnalysis returns mid-scale scores so a single failed analysis never
// skews the interview.
func fallbackAnalysis(question, jobRole string) map[string]any {
	return map[string]any{
		"main_points":          []any{"Unable to extract main points due to an analysis error"},
		"key_concepts":         []any{},
		"technical_accuracy":   5,
		"depth_of_knowledge":   5,
		"relevance_score":      5,
		"misconceptions":       []any{},
		"missing_topics":       []any{},
		"question":             question,
		"job_role":             jobRole,
		"generated_from_error": true,
	}
}
