// Package history stores processed reports.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resumecoach/internal/models"
	"resumecoach/internal/templates"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var ErrNotFound = errors.New("report not found")

// Service persists reports in the reports table.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const reportColumns = `id, batch_id, file_name, state, failure, keywords, feedback, template_name, error, model, cached, created_at`

// SaveReport inserts a terminal report.
func (s *Service) SaveReport(ctx context.Context, report *models.Report) error {
	if report == nil || report.ID == "" {
		return errors.New("report id required")
	}
	keywords := report.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.BatchID,
		report.FileName,
		string(report.State),
		string(report.Failure),
		string(encoded),
		report.Feedback,
		string(report.TemplateName),
		report.Error,
		report.Model,
		report.Cached,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport loads one report by id.
func (s *Service) GetReport(ctx context.Context, id string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query report: %w", err)
	}
	return report, nil
}

// ListReports returns the most recent reports, newest first.
func (s *Service) ListReports(ctx context.Context, limit int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return collect(rows)
}

// ListBatch returns the reports of one batch in upload order.
func (s *Service) ListBatch(ctx context.Context, batchID string) ([]*models.Report, error) {
	if batchID == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE batch_id = ? ORDER BY seq ASC`, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batch: %w", err)
	}
	reports, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNotFound
	}
	return reports, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*models.Report, error) {
	var (
		r            models.Report
		state        string
		failure      string
		keywords     string
		templateName string
	)
	if err := row.Scan(
		&r.ID,
		&r.BatchID,
		&r.FileName,
		&state,
		&failure,
		&keywords,
		&r.Feedback,
		&templateName,
		&r.Error,
		&r.Model,
		&r.Cached,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.State = models.State(state)
	r.Failure = models.Failure(failure)
	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords: %w", err)
		}
	}
	if templateName != "" {
		r.TemplateName = models.TemplateName(templateName)
		if info, ok := templates.Lookup(r.TemplateName); ok {
			r.Template = &info
		}
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func collect(rows *sql.Rows) ([]*models.Report, error) {
	defer rows.Close()
	var reports []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}
