// Package classify decides whether extracted text looks like a resume.
package classify

import "strings"

// Threshold is the number of distinct keywords a resume must mention.
const Threshold = 2

// Keywords are matched as case-insensitive substrings.
var Keywords = []string{
	"education",
	"experience",
	"skills",
	"projects",
	"resume",
	"profile",
	"certification",
}

// Matches returns the keywords present in text, in keyword order. Each keyword
// counts once no matter how often it occurs.
func Matches(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// IsResume reports whether text mentions at least Threshold distinct keywords.
func IsResume(text string) bool {
	return len(Matches(text)) >= Threshold
}
