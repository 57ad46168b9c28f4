package schemas

import "strings"

// CandidateProfile holds the applicant data used to fill forms. It is read
// only for the automation core.
type CandidateProfile struct {
	Name            string   `json:"name" mapstructure:"name" yaml:"name"`
	Email           string   `json:"email" mapstructure:"email" yaml:"email"`
	Phone           string   `json:"phone" mapstructure:"phone" yaml:"phone"`
	Location        string   `json:"location" mapstructure:"location" yaml:"location"`
	Title           string   `json:"title" mapstructure:"title" yaml:"title"`
	Skills          []string `json:"skills" mapstructure:"skills" yaml:"skills"`
	ExperienceYears int      `json:"experience_years" mapstructure:"experience_years" yaml:"experience_years"`
	Education       string   `json:"education" mapstructure:"education" yaml:"education"`
	LinkedIn        string   `json:"linkedin" mapstructure:"linkedin" yaml:"linkedin"`
	GitHub          string   `json:"github" mapstructure:"github" yaml:"github"`
	Website         string   `json:"website" mapstructure:"website" yaml:"website"`
	Summary         string   `json:"summary" mapstructure:"summary" yaml:"summary"`
	ResumeFilePath  string   `json:"resume_file_path" mapstructure:"resume_file_path" yaml:"resume_file_path"`
}

// FirstName returns the first whitespace separated token of Name.
func (p *CandidateProfile) FirstName() string {
	parts := strings.Fields(p.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName returns everything after the first token of Name.
func (p *CandidateProfile) LastName() string {
	parts := strings.Fields(p.Name)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}
