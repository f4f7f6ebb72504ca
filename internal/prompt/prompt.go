// Package prompt renders the fixed resume review instructions.
package prompt

import (
	"fmt"
	"strings"

	"resumecoach/internal/templates"
)

// MaxChars bounds the resume text embedded in a prompt.
const MaxChars = 6000

// SystemInstruction is sent ahead of every review prompt.
const SystemInstruction = "You are a professional resume reviewer."

const reviewTemplate = `
You are an expert career coach. Analyze this resume and provide:
1. Suggested Job Titles
2. Key Strengths
3. Areas of Improvement
4. Missing Keywords for Data Science
5. Estimated ATS pass probability (0–100%%)
6. Section recommendations
7. Resume style feedback
8. Suggest ONE best-fitting resume template name from ONLY these:
%s
Resume:
%s
`

// Truncate keeps the first limit characters of text. It counts runes, so a
// multi-byte character is never split.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// Build truncates text to MaxChars and embeds it verbatim in the review
// instructions.
func Build(text string) string {
	var names strings.Builder
	for _, name := range templates.Names() {
		fmt.Fprintf(&names, "   - %s\n", name)
	}
	return fmt.Sprintf(reviewTemplate, names.String(), Truncate(text, MaxChars))
}
