// Package coach runs uploaded documents through extraction, classification,
// analysis and template resolution.
package coach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resumecoach/internal/classify"
	"resumecoach/internal/extract"
	"resumecoach/internal/models"
	"resumecoach/internal/prompt"
	"resumecoach/internal/service/ai"
	"resumecoach/internal/templates"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const pdfMimeType = "application/pdf"

// Analyzer performs the single completion call for a review prompt.
type Analyzer interface {
	Analyze(ctx context.Context, reviewPrompt string) (*ai.Analysis, error)
	Model() string
}

// Recorder persists terminal reports.
type Recorder interface {
	SaveReport(ctx context.Context, report *models.Report) error
}

// ExtractFunc turns raw document bytes into text.
type ExtractFunc func(data []byte) (string, error)

// Pipeline processes documents one at a time.
type Pipeline struct {
	analyzer Analyzer
	recorder Recorder
	extract  ExtractFunc
	now      func() time.Time
}

type Option func(*Pipeline)

// WithRecorder stores every terminal report.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithExtractor replaces the PDF text extractor.
func WithExtractor(fn ExtractFunc) Option {
	return func(p *Pipeline) { p.extract = fn }
}

func NewPipeline(analyzer Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer: analyzer,
		extract:  extract.Text,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one document to a terminal state.
func (p *Pipeline) Process(ctx context.Context, doc models.Document) *models.Report {
	return p.process(ctx, "", doc)
}

// ProcessBatch handles docs in order. A failed document never stops the
// rest; onReport, when set, sees each report as soon as it is terminal.
// Processing stops early only when ctx is done.
func (p *Pipeline) ProcessBatch(ctx context.Context, batchID string, docs []models.Document, onReport func(*models.Report)) []*models.Report {
	reports := make([]*models.Report, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Str("batch_id", batchID).Int("remaining", len(docs)-len(reports)).Msg("batch cancelled")
			break
		}
		report := p.process(ctx, batchID, doc)
		reports = append(reports, report)
		if onReport != nil {
			onReport(report)
		}
	}
	return reports
}

func (p *Pipeline) process(ctx context.Context, batchID string, doc models.Document) *models.Report {
	report := &models.Report{
		ID:        doc.ID,
		BatchID:   batchID,
		FileName:  doc.FileName,
		State:     models.StateUploaded,
		CreatedAt: p.now().UTC(),
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	// a document that has started runs to the end even if the caller goes away
	docCtx := context.WithoutCancel(ctx)
	pages := p.run(docCtx, doc, report)

	logger := log.With().
		Str("batch_id", batchID).
		Str("report_id", report.ID).
		Str("file", report.FileName).
		Int("pages", pages).
		Str("state", string(report.State)).
		Logger()
	if report.Failure != models.FailureNone {
		logger.Info().Str("failure", string(report.Failure)).Msg(report.Error)
	} else {
		logger.Info().Str("template", string(report.TemplateName)).Msg("document processed")
	}

	if p.recorder != nil {
		if err := p.recorder.SaveReport(docCtx, report); err != nil {
			logger.Error().Err(err).Msg("save report failed")
		}
	}
	return report
}

// run advances report to a terminal state and returns the page count of the
// document, 0 when it is not a readable PDF.
func (p *Pipeline) run(ctx context.Context, doc models.Document, report *models.Report) int {
	if doc.MimeType != "" && doc.MimeType != pdfMimeType {
		reject(report, models.FailureExtraction, fmt.Sprintf("unsupported file type %s, only PDF files are accepted", doc.MimeType))
		return 0
	}
	pages, _ := extract.PageCount(doc.Data)
	text, err := p.extract(doc.Data)
	if err != nil {
		reject(report, models.FailureExtraction, extractionMessage(err))
		return pages
	}
	report.State = models.StateExtracted

	report.Keywords = classify.Matches(text)
	if len(report.Keywords) < classify.Threshold {
		reject(report, models.FailureClassification, "this document does not look like a resume")
		return pages
	}
	report.State = models.StateClassified

	report.Model = p.analyzer.Model()
	analysis, err := p.analyzer.Analyze(ctx, prompt.Build(text))
	if err != nil {
		report.State = models.StateAnalysisFailed
		report.Failure = models.FailureService
		report.Error = fmt.Sprintf("analysis failed: %v", err)
		return pages
	}
	report.State = models.StateAnalyzed
	report.Feedback = analysis.Content
	report.Model = analysis.Model
	report.Cached = analysis.Cached

	name, ok := templates.Resolve(analysis.Content)
	if !ok {
		report.State = models.StateNoTemplate
		return pages
	}
	info, _ := templates.Lookup(name)
	report.State = models.StateTemplateFound
	report.TemplateName = name
	report.Template = &info
	return pages
}

func reject(report *models.Report, failure models.Failure, msg string) {
	report.State = models.StateRejected
	report.Failure = failure
	report.Error = msg
}

func extractionMessage(err error) string {
	if errors.Is(err, extract.ErrNoText) {
		return "no text could be extracted from the PDF"
	}
	return fmt.Sprintf("could not read the PDF: %v", err)
}
