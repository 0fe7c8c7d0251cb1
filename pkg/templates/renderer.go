// Package templates provides prompt template rendering for the interview
// turn loop.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// InterviewData holds the data for prompt template rendering.
type InterviewData struct {
	PersonaName         string `json:"persona_name"`
	CandidateName       string `json:"candidate_name"`
	SessionID           string `json:"session_id"`
	Stage               string `json:"stage"`
	JobRole             string `json:"job_role"`
	SeniorityLevel      string `json:"seniority_level"`
	RequiredSkills      string `json:"required_skills"`
	JobDescription      string `json:"job_description"`
	RequiresCoding      bool   `json:"requires_coding"`
	ConversationSummary string `json:"conversation_summary,omitempty"`
	// Set only when introducing a cached coding challenge.
	ProblemStatement string `json:"problem_statement,omitempty"`
}

// PromptTemplate names an embedded template.
type PromptTemplate string

const (
	// InterviewSystemTemplate is the main interviewer system prompt.
	InterviewSystemTemplate PromptTemplate = "interview_system.tpl.md"
	// ChallengeIntroTemplate overrides the system prompt for the turn that
	// introduces a cached coding challenge.
	ChallengeIntroTemplate PromptTemplate = "challenge_intro.tpl.md"
)

// Renderer handles prompt template rendering.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer creates a renderer with all embedded templates parsed.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[PromptTemplate]*template.Template),
	}

	templateNames := []PromptTemplate{
		InterviewSystemTemplate,
		ChallengeIntroTemplate,
	}

	for _, name := range templateNames {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName PromptTemplate, data *InterviewData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// GetAvailableTemplates returns a list of all parsed templates.
func (r *Renderer) GetAvailableTemplates() []PromptTemplate {
	names := make([]PromptTemplate, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
