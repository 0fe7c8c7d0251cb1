package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
	"interviewer/pkg/proto"
)

// Extraction is skipped below this many messages; there is not enough signal.
const minMessagesForExtraction = 5

const extractionSystemPrompt = `You are an expert at analyzing technical interviews and extracting structured information.
Extract key information from this interview conversation into the following structured format.
Only include information that was explicitly mentioned; don't infer or make up details.

Format your response as a valid JSON object with these fields:
{
    "candidate_details": {
        "name": "Candidate's name if mentioned",
        "years_of_experience": "Years of experience in relevant fields (number or range)",
        "current_role": "Current job title if mentioned",
        "education": "Educational background if mentioned",
        "location": "Location if mentioned"
    },
    "key_skills": ["List of skills the candidate mentioned having"],
    "notable_experiences": ["Brief descriptions of notable projects or achievements mentioned"],
    "strengths": ["Areas where the candidate demonstrated strength"],
    "areas_for_improvement": ["Areas where the candidate could improve"],
    "coding_ability": {
        "assessed": false,
        "languages": ["Programming languages mentioned"],
        "frameworks": ["Frameworks mentioned"],
        "level": "Assessment of coding ability if determined"
    },
    "communication_ability": "Assessment of communication skills if demonstrated"
}`

var (
	fencedJSONRegex = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareJSONRegex   = regexp.MustCompile(`(?s)(\{.*\})`)
)

// Extractor derives a candidate profile from transcript slices via the
// summarizer model.
type Extractor struct {
	model  llm.Client
	logger *logx.Logger
}

// NewExtractor creates an extractor over the given model.
func NewExtractor(model llm.Client) *Extractor {
	return &Extractor{model: model, logger: logx.NewLogger("insight-extractor")}
}

// Extract runs structured extraction over messages and merges the result into
// a copy of prior. Fail-soft: any model or parse failure returns the prior
// profile unchanged. Conversations shorter than the extraction minimum are
// skipped.
func (e *Extractor) Extract(ctx context.Context, messages []proto.Message, prior *Profile) *Profile {
	result := NewProfile()
	if prior != nil {
		result = prior.Clone()
	}

	if len(messages) < minMessagesForExtraction {
		return result
	}

	resp, err := e.model.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(extractionSystemPrompt),
			llm.NewUserMessage("Here is the interview conversation to analyze:\n\n" + renderTranscript(messages)),
		},
		Temperature: 0.2,
		MaxTokens:   2048,
	})
	if err != nil {
		e.logger.Warn("insight extraction model call failed: %v", err)
		return result
	}

	extracted, err := parseProfile(resp.Content)
	if err != nil {
		e.logger.Warn("insight extraction returned unparseable output: %v", err)
		return result
	}

	result.Merge(extracted)
	e.logger.Debug("extracted insights: %d skills, %d experiences", len(result.KeySkills), len(result.NotableExperiences))
	return result
}

// parseProfile recovers a profile from model output, trying a fenced JSON
// block first and then the outermost braces in the raw text.
func parseProfile(text string) (*Profile, error) {
	payload := text
	if m := fencedJSONRegex.FindStringSubmatch(text); m != nil {
		payload = m[1]
	} else if m := bareJSONRegex.FindStringSubmatch(text); m != nil {
		payload = m[1]
	}

	// candidate_details values sometimes come back as numbers (years of
	// experience), so decode loosely and stringify.
	var raw struct {
		CandidateDetails     map[string]any `json:"candidate_details"`
		KeySkills            []string       `json:"key_skills"`
		NotableExperiences   []string       `json:"notable_experiences"`
		Strengths            []string       `json:"strengths"`
		AreasForImprovement  []string       `json:"areas_for_improvement"`
		CodingAbility        CodingAbility  `json:"coding_ability"`
		CommunicationAbility string         `json:"communication_ability"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}

	profile := NewProfile()
	for key, value := range raw.CandidateDetails {
		if value == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(value)); s != "" {
			profile.CandidateDetails[key] = s
		}
	}
	profile.KeySkills = raw.KeySkills
	profile.NotableExperiences = raw.NotableExperiences
	profile.Strengths = raw.Strengths
	profile.AreasForImprovement = raw.AreasForImprovement
	profile.CodingAbility = raw.CodingAbility
	profile.CommunicationAbility = raw.CommunicationAbility
	return profile, nil
}

func renderTranscript(messages []proto.Message) string {
	var lines []string
	for i := range messages {
		msg := &messages[i]
		if msg.Content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Kind, msg.Content))
	}
	return strings.Join(lines, "\n")
}
