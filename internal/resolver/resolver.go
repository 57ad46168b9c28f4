// Package resolver maps field categories to candidate profile values.
package resolver

import (
	"strconv"
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/classifier"
)

// maxSkills bounds how many skills are joined into a single field.
const maxSkills = 5

type valueFunc func(p *schemas.CandidateProfile) string

// categoryValues is the fixed category to profile attribute table.
var categoryValues = map[schemas.Category]valueFunc{
	schemas.CategoryName:       func(p *schemas.CandidateProfile) string { return p.Name },
	schemas.CategoryFirstName:  func(p *schemas.CandidateProfile) string { return p.FirstName() },
	schemas.CategoryLastName:   func(p *schemas.CandidateProfile) string { return p.LastName() },
	schemas.CategoryEmail:      func(p *schemas.CandidateProfile) string { return p.Email },
	schemas.CategoryPhone:      func(p *schemas.CandidateProfile) string { return p.Phone },
	schemas.CategoryAddress:    func(p *schemas.CandidateProfile) string { return p.Location },
	schemas.CategoryPosition:   func(p *schemas.CandidateProfile) string { return p.Title },
	schemas.CategorySkills:     skills,
	schemas.CategoryEducation:  func(p *schemas.CandidateProfile) string { return p.Education },
	schemas.CategoryExperience: experience,
	schemas.CategoryLinkedIn:   func(p *schemas.CandidateProfile) string { return p.LinkedIn },
	schemas.CategoryGitHub:     func(p *schemas.CandidateProfile) string { return p.GitHub },
	schemas.CategoryWebsite:    func(p *schemas.CandidateProfile) string { return p.Website },
	schemas.CategoryURL:        func(p *schemas.CandidateProfile) string { return p.Website },
	schemas.CategorySummary:    func(p *schemas.CandidateProfile) string { return p.Summary },
	schemas.CategoryFileUpload: func(p *schemas.CandidateProfile) string { return p.ResumeFilePath },
}

func skills(p *schemas.CandidateProfile) string {
	var out []string
	for _, s := range p.Skills {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxSkills {
			break
		}
	}
	return strings.Join(out, ", ")
}

func experience(p *schemas.CandidateProfile) string {
	if p.ExperienceYears <= 0 {
		return ""
	}
	return strconv.Itoa(p.ExperienceYears)
}

// Resolve returns the profile value for a field. Generic categories (text,
// unknown, select, textarea) are resolved through the label's keywords. ok
// is false when nothing applies or the profile value is empty; such fields
// must be skipped rather than filled with a blank.
func Resolve(category schemas.Category, label string, profile *schemas.CandidateProfile) (string, bool) {
	if profile == nil {
		return "", false
	}
	if category.IsGeneric() {
		kc, ok := classifier.MatchKeywords(label)
		// The resume path is only ever attached to an upload control; a
		// generic field mentioning a CV must not receive a local path.
		if !ok || kc == schemas.CategoryFileUpload {
			return "", false
		}
		category = kc
	}
	fn, ok := categoryValues[category]
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(fn(profile))
	if value == "" {
		return "", false
	}
	return value, true
}
