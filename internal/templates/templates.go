// Package templates maps model output to one of the fixed resume templates.
package templates

import (
	"regexp"

	"resumecoach/internal/models"
)

// Entry is a catalogue row.
type Entry struct {
	Name models.TemplateName `json:"name"`
	models.TemplateInfo
}

// order is also the match priority.
var order = []models.TemplateName{
	models.TemplateMinimalistClassic,
	models.TemplateModernCreative,
	models.TemplateOnePageProfessional,
}

var table = map[models.TemplateName]models.TemplateInfo{
	models.TemplateMinimalistClassic: {
		ImageURL: "https://cdn.jsdelivr.net/gh/OpenAI-Designs/templates/minimalist-classic.png",
		LinkURL:  "https://www.canva.com/resumes/templates/minimalist/",
	},
	models.TemplateModernCreative: {
		ImageURL: "https://cdn.jsdelivr.net/gh/OpenAI-Designs/templates/modern-creative.png",
		LinkURL:  "https://www.canva.com/resumes/templates/creative/",
	},
	models.TemplateOnePageProfessional: {
		ImageURL: "https://cdn.jsdelivr.net/gh/OpenAI-Designs/templates/onepage-professional.png",
		LinkURL:  "https://www.canva.com/resumes/templates/professional/",
	},
}

var patterns = compile()

// Unicode aware word boundaries; \b in RE2 only knows ASCII word characters.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

func compile() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(order))
	for i, name := range order {
		out[i] = regexp.MustCompile(`(?i)` + wordStart + regexp.QuoteMeta(string(name)) + wordEnd)
	}
	return out
}

// Names lists the template names in priority order.
func Names() []models.TemplateName {
	names := make([]models.TemplateName, len(order))
	copy(names, order)
	return names
}

// Resolve returns the first template name mentioned in output as a whole
// word, ignoring case. Output that names none of them resolves to false.
func Resolve(output string) (models.TemplateName, bool) {
	for i, re := range patterns {
		if re.MatchString(output) {
			return order[i], true
		}
	}
	return "", false
}

// Lookup returns the asset record for a known template name.
func Lookup(name models.TemplateName) (models.TemplateInfo, bool) {
	info, ok := table[name]
	return info, ok
}

// All returns the catalogue in priority order.
func All() []Entry {
	entries := make([]Entry, 0, len(order))
	for _, name := range order {
		entries = append(entries, Entry{Name: name, TemplateInfo: table[name]})
	}
	return entries
}
