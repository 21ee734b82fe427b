package tutor

import (
	_ "embed"
	"strings"
	"text/template"
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("tutor").Parse(promptSource))

const noMemories = "No memories yet. Ask the user about themselves!"

type promptData struct {
	Profile
	Memories string
}

// BuildSystemInstruction renders the tutor persona for profile. Empty
// profile fields take their defaults.
func BuildSystemInstruction(profile Profile, memories []Memory) string {
	var sb strings.Builder
	data := promptData{
		Profile:  profile.withDefaults(),
		Memories: formatMemories(memories),
	}
	_ = promptTemplate.Execute(&sb, data)
	return sb.String()
}

func formatMemories(memories []Memory) string {
	if len(memories) == 0 {
		return noMemories
	}
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, "- "+m.Topic+": "+m.Summary)
	}
	return strings.Join(lines, "\n")
}
