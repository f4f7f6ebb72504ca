package models

import "time"

// State is a step of the per-document pipeline.
type State string

const (
	StateUploaded       State = "uploaded"
	StateExtracted      State = "extracted"
	StateClassified     State = "classified"
	StateRejected       State = "rejected"
	StateAnalysisFailed State = "analysis_failed"
	StateAnalyzed       State = "analyzed"
	StateTemplateFound  State = "template_found"
	StateNoTemplate     State = "no_template"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateAnalysisFailed, StateTemplateFound, StateNoTemplate:
		return true
	default:
		return false
	}
}

// Failure classifies why a document stopped early.
type Failure string

const (
	FailureNone           Failure = ""
	FailureExtraction     Failure = "extraction_failure"
	FailureClassification Failure = "classification_rejection"
	FailureService        Failure = "service_error"
)

// Report is the outcome of processing one document.
type Report struct {
	ID           string        `json:"id"`
	BatchID      string        `json:"batch_id"`
	FileName     string        `json:"file_name"`
	State        State         `json:"state"`
	Failure      Failure       `json:"failure,omitempty"`
	Keywords     []string      `json:"keywords,omitempty"`
	Feedback     string        `json:"feedback,omitempty"`
	TemplateName TemplateName  `json:"template_name,omitempty"`
	Template     *TemplateInfo `json:"template,omitempty"`
	Error        string        `json:"error,omitempty"`
	Model        string        `json:"model,omitempty"`
	Cached       bool          `json:"cached"`
	CreatedAt    time.Time     `json:"created_at"`
}
