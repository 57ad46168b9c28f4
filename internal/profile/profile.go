// Package profile loads candidate profiles from YAML or JSON files.
package profile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// rootKey is an optional wrapper key, so a task file's profile section can
// be loaded on its own.
const rootKey = "candidate_profile"

// ErrEmptyProfile is returned when a profile carries no usable data.
var ErrEmptyProfile = errors.New("profile: no name or email")

// Load reads a profile from path. The format follows the file extension.
// A relative resume path is resolved against the profile's directory.
func Load(path string) (*schemas.CandidateProfile, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("profile: expand %q: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(expanded)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", expanded, err)
	}
	if sub := v.Sub(rootKey); sub != nil {
		v = sub
	}
	return decode(v, filepath.Dir(expanded))
}

// FromViper decodes a profile from an already loaded viper instance.
func FromViper(v *viper.Viper, baseDir string) (*schemas.CandidateProfile, error) {
	return decode(v, baseDir)
}

func decode(v *viper.Viper, baseDir string) (*schemas.CandidateProfile, error) {
	var p schemas.CandidateProfile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	normalize(&p)
	if p.Name == "" && p.Email == "" {
		return nil, ErrEmptyProfile
	}

	if p.ResumeFilePath != "" {
		resume, err := homedir.Expand(p.ResumeFilePath)
		if err != nil {
			return nil, fmt.Errorf("profile: expand resume path: %w", err)
		}
		if !filepath.IsAbs(resume) && baseDir != "" {
			resume = filepath.Join(baseDir, resume)
		}
		p.ResumeFilePath = resume
	}
	return &p, nil
}

func normalize(p *schemas.CandidateProfile) {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.ResumeFilePath = strings.TrimSpace(p.ResumeFilePath)

	skills := p.Skills[:0]
	for _, s := range p.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	p.Skills = skills
}
