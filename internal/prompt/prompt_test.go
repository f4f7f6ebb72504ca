package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", MaxChars)
	if got := Truncate(short, MaxChars); got != short {
		t.Fatalf("text at the limit must pass unmodified")
	}

	long := strings.Repeat("b", MaxChars+250)
	if got := Truncate(long, MaxChars); len(got) != MaxChars {
		t.Fatalf("expected %d chars, got %d", MaxChars, len(got))
	}

	multi := strings.Repeat("é", MaxChars+1)
	got := Truncate(multi, MaxChars)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != MaxChars {
		t.Fatalf("multi-byte text split badly: %d runes", utf8.RuneCountInString(got))
	}

	if Truncate("abc", 0) != "" {
		t.Fatalf("zero limit should yield empty text")
	}
}

func TestBuildEmbedsTruncatedText(t *testing.T) {
	resume := "EDUCATION\n" + strings.Repeat("x", MaxChars*2)
	p := Build(resume)

	idx := strings.Index(p, "Resume:\n")
	if idx < 0 {
		t.Fatalf("prompt missing resume marker")
	}
	embedded := strings.TrimSuffix(p[idx+len("Resume:\n"):], "\n")
	if utf8.RuneCountInString(embedded) != MaxChars {
		t.Fatalf("embedded text has %d chars, want %d", utf8.RuneCountInString(embedded), MaxChars)
	}
	if !strings.HasPrefix(embedded, "EDUCATION\n") {
		t.Fatalf("embedded text should keep the head of the resume")
	}
}

func TestBuildListsSectionsAndTemplates(t *testing.T) {
	p := Build("Skills: Go")
	for _, want := range []string{
		"1. Suggested Job Titles",
		"5. Estimated ATS pass probability (0–100%)",
		"8. Suggest ONE best-fitting resume template name",
		"   - Minimalist Classic\n",
		"   - Modern Creative\n",
		"   - One-page Professional\n",
		"Resume:\nSkills: Go\n",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}
