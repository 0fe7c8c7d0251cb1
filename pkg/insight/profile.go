// Package insight maintains the structured candidate profile extracted from
// interview transcripts. Profiles merge monotonically: extractions can add
// facts but never remove them, so compaction cannot destroy what has already
// been learned.
package insight

import (
	"fmt"
	"strings"
)

// CodingAbility captures what the interview has established about the
// candidate's coding skills.
type CodingAbility struct {
	Assessed         bool             `json:"assessed"`
	Languages        []string         `json:"languages"`
	Frameworks       []string         `json:"frameworks"`
	Level            string           `json:"level"`
	ChallengeResults []map[string]any `json:"challenge_results,omitempty"`
}

// Profile is the structured candidate profile.
type Profile struct {
	CandidateDetails     map[string]string `json:"candidate_details"`
	KeySkills            []string          `json:"key_skills"`
	NotableExperiences   []string          `json:"notable_experiences"`
	Strengths            []string          `json:"strengths"`
	AreasForImprovement  []string          `json:"areas_for_improvement"`
	CodingAbility        CodingAbility     `json:"coding_ability"`
	CommunicationAbility string            `json:"communication_ability"`
}

// NewProfile creates an empty profile with initialized containers.
func NewProfile() *Profile {
	return &Profile{
		CandidateDetails: make(map[string]string),
	}
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	out := NewProfile()
	out.Merge(p)
	return out
}

// Merge folds update into p. List fields receive case-insensitively
// de-duplicated unions preserving insertion order; scalar fields are
// overwritten only by non-empty new values, with the candidate name always
// preferring the newest non-empty value since later turns usually carry more
// complete information. Assessed never flips back to false.
func (p *Profile) Merge(update *Profile) {
	if update == nil {
		return
	}

	if p.CandidateDetails == nil {
		p.CandidateDetails = make(map[string]string)
	}
	for key, value := range update.CandidateDetails {
		if value == "" {
			continue
		}
		if key == "name" || p.CandidateDetails[key] == "" {
			p.CandidateDetails[key] = value
		}
	}

	p.KeySkills = mergeList(p.KeySkills, update.KeySkills)
	p.NotableExperiences = mergeList(p.NotableExperiences, update.NotableExperiences)
	p.Strengths = mergeList(p.Strengths, update.Strengths)
	p.AreasForImprovement = mergeList(p.AreasForImprovement, update.AreasForImprovement)

	if update.CodingAbility.Assessed {
		p.CodingAbility.Assessed = true
	}
	p.CodingAbility.Languages = mergeList(p.CodingAbility.Languages, update.CodingAbility.Languages)
	p.CodingAbility.Frameworks = mergeList(p.CodingAbility.Frameworks, update.CodingAbility.Frameworks)
	if update.CodingAbility.Level != "" {
		p.CodingAbility.Level = update.CodingAbility.Level
	}
	p.CodingAbility.ChallengeResults = append(p.CodingAbility.ChallengeResults, update.CodingAbility.ChallengeResults...)

	if update.CommunicationAbility != "" {
		p.CommunicationAbility = update.CommunicationAbility
	}
}

// AddChallengeResult records a coding submission outcome and marks coding
// ability as assessed.
func (p *Profile) AddChallengeResult(result map[string]any) {
	p.CodingAbility.Assessed = true
	p.CodingAbility.ChallengeResults = append(p.CodingAbility.ChallengeResults, result)
}

// mergeList unions add into dst with case-insensitive de-duplication,
// preserving insertion order.
func mergeList(dst, add []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, item := range dst {
		seen[strings.ToLower(item)] = struct{}{}
	}
	for _, item := range add {
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		dst = append(dst, item)
		seen[key] = struct{}{}
	}
	return dst
}

// Render produces the compact textual form embedded in summarization and
// system prompts.
func (p *Profile) Render() string {
	var b strings.Builder

	if name := p.CandidateDetails["name"]; name != "" {
		fmt.Fprintf(&b, "Name: %s\n", name)
	}
	if role := p.CandidateDetails["current_role"]; role != "" {
		fmt.Fprintf(&b, "Current Role: %s\n", role)
	}
	if exp := p.CandidateDetails["years_of_experience"]; exp != "" {
		fmt.Fprintf(&b, "Experience: %s\n", exp)
	}
	if edu := p.CandidateDetails["education"]; edu != "" {
		fmt.Fprintf(&b, "Education: %s\n", edu)
	}
	if len(p.KeySkills) > 0 {
		fmt.Fprintf(&b, "Key Skills: %s\n", strings.Join(capList(p.KeySkills, 10), ", "))
	}
	if len(p.NotableExperiences) > 0 {
		fmt.Fprintf(&b, "Notable Experiences: %s\n", strings.Join(capList(p.NotableExperiences, 3), "; "))
	}
	if len(p.Strengths) > 0 {
		fmt.Fprintf(&b, "Strengths: %s\n", strings.Join(capList(p.Strengths, 5), ", "))
	}
	if len(p.CodingAbility.Languages) > 0 {
		fmt.Fprintf(&b, "Coding Languages: %s\n", strings.Join(p.CodingAbility.Languages, ", "))
	}
	if p.CodingAbility.Level != "" {
		fmt.Fprintf(&b, "Coding Level: %s\n", p.CodingAbility.Level)
	}
	if p.CommunicationAbility != "" {
		fmt.Fprintf(&b, "Communication: %s\n", p.CommunicationAbility)
	}

	return strings.TrimRight(b.String(), "\n")
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
