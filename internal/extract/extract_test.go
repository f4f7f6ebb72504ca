package extract

import (
	"errors"
	"strings"
	"testing"

	"resumecoach/internal/extract/extracttest"
)

func TestTextConcatenatesPages(t *testing.T) {
	data := extracttest.PDF("Jane Doe Education", "Experience at Acme")

	text, err := Text(data)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	for _, want := range []string{"Jane Doe", "Education", "Experience at Acme"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in %q", want, text)
		}
	}
	if strings.Index(text, "Education") > strings.Index(text, "Experience") {
		t.Fatalf("pages out of order: %q", text)
	}
}

func TestTextWithoutTextLayer(t *testing.T) {
	_, err := Text(extracttest.PDF(""))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestTextRejectsUnreadableInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"blank":     []byte("   \n"),
		"not a pdf": []byte("Education, Experience, Skills"),
		"truncated": extracttest.PDF("Education Skills")[:40],
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			text, err := Text(data)
			if !errors.Is(err, ErrUnreadable) {
				t.Fatalf("expected ErrUnreadable, got %v", err)
			}
			if text != "" {
				t.Fatalf("expected empty text, got %q", text)
			}
		})
	}
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(extracttest.PDF("one", "two", "three"))
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pages, got %d", n)
	}
}
