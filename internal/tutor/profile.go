// Package tutor builds the tutor persona prompt and streams replies from a
// text model.
package tutor

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Profile describes the learner.
type Profile struct {
	Name       string `yaml:"name"`
	NativeLang string `yaml:"native_lang"`
	TargetLang string `yaml:"target_lang"`
	Level      string `yaml:"level"` // CEFR level or beginner/intermediate/advanced
}

// Memory is a fact remembered about the learner.
type Memory struct {
	Topic   string `yaml:"topic"`
	Summary string `yaml:"summary"`
}

// profileFile is the on-disk layout of a learner profile.
type profileFile struct {
	Profile  `yaml:",inline"`
	Memories []Memory `yaml:"memories"`
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() Profile {
	return Profile{
		Name:       "Student",
		NativeLang: "Russian",
		TargetLang: "English",
		Level:      "beginner",
	}
}

// withDefaults fills empty fields from DefaultProfile.
func (p Profile) withDefaults() Profile {
	d := DefaultProfile()
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.NativeLang == "" {
		p.NativeLang = d.NativeLang
	}
	if p.TargetLang == "" {
		p.TargetLang = d.TargetLang
	}
	if p.Level == "" {
		p.Level = d.Level
	}
	return p
}

// LoadProfile reads a learner profile and its memories from a YAML file. An
// empty path returns the defaults.
//
//	name: Nikolay
//	native_lang: Russian
//	target_lang: Spanish
//	level: A2
//	memories:
//	  - topic: pets
//	    summary: Has a cat called Barsik
func LoadProfile(path string) (Profile, []Memory, error) {
	if path == "" {
		return DefaultProfile(), nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Profile{}, nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	return f.Profile.withDefaults(), f.Memories, nil
}
