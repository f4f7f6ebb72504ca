package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"resumecoach/internal/models"
	"resumecoach/internal/service/history"
	"resumecoach/internal/templates"
	"resumecoach/internal/worker"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultMaxFiles       = 10
	multipartOverhead     = 1 << 20
	sniffLen              = 512
	healthTimeout         = 2 * time.Second
)

// BatchRunner queues uploaded batches for the single analysis worker.
type BatchRunner interface {
	Enqueue(ctx context.Context, batchID string, docs []models.Document) (*worker.Ticket, error)
	Pending() int
}

// ReportStore reads processed reports back.
type ReportStore interface {
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, limit int) ([]*models.Report, error)
	ListBatch(ctx context.Context, batchID string) ([]*models.Report, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Limits struct {
	MaxUploadBytes int64
	MaxFiles       int
}

// Handler wires HTTP routes to the batch runner and the report history.
type Handler struct {
	runner  BatchRunner
	reports ReportStore
	limits  Limits
	cache   Pinger
}

type Option func(*Handler)

// WithCacheCheck makes /healthz ping the analysis cache.
func WithCacheCheck(p Pinger) Option {
	return func(h *Handler) { h.cache = p }
}

// NewHandler constructs a Handler instance.
func NewHandler(runner BatchRunner, reports ReportStore, limits Limits, opts ...Option) *Handler {
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = defaultMaxUploadBytes
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = defaultMaxFiles
	}
	h := &Handler{
		runner:  runner,
		reports: reports,
		limits:  limits,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	api := router.Group("/api")
	api.POST("/resumes/analyze", h.analyze)
	api.POST("/resumes/analyze/stream", h.analyzeStream)
	api.GET("/templates", h.listTemplates)
	api.GET("/reports", h.listReports)
	api.GET("/reports/:id", h.getReport)
	api.GET("/batches/:id", h.getBatch)
}

func (h *Handler) health(c *gin.Context) {
	body := gin.H{
		"status":         "ok",
		"queued_batches": h.runner.Pending(),
	}
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["cache"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["cache"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) analyze(c *gin.Context) {
	docs, ok := h.readDocuments(c)
	if !ok {
		return
	}
	batchID := uuid.NewString()
	ticket, err := h.runner.Enqueue(c.Request.Context(), batchID, docs)
	if err != nil {
		writeQueueError(c, err)
		return
	}
	reports, err := ticket.Wait(c.Request.Context(), nil)
	if err != nil {
		writeQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id": batchID,
		"reports":  reports,
	})
}

func (h *Handler) analyzeStream(c *gin.Context) {
	docs, ok := h.readDocuments(c)
	if !ok {
		return
	}
	batchID := uuid.NewString()
	ticket, err := h.runner.Enqueue(c.Request.Context(), batchID, docs)
	if err != nil {
		writeQueueError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.FileName)
	}
	if err := sendEvent("accepted", gin.H{"batch_id": batchID, "files": names}); err != nil {
		return
	}
	var writeErr error
	reports, err := ticket.Wait(c.Request.Context(), func(r *models.Report) {
		if writeErr == nil {
			writeErr = sendEvent("report", r)
		}
	})
	if err != nil {
		_ = sendEvent("error", gin.H{"message": queueErrorMessage(err)})
		return
	}
	if writeErr != nil {
		log.Warn().Err(writeErr).Str("batch_id", batchID).Msg("stream client went away")
		return
	}
	_ = sendEvent("done", gin.H{"batch_id": batchID, "count": len(reports)})
}

func (h *Handler) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": templates.All()})
}

func (h *Handler) listReports(c *gin.Context) {
	limit := history.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, history.MaxListLimit)
	}
	reports, err := h.reports.ListReports(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reports == nil {
		reports = make([]*models.Report, 0)
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *Handler) getReport(c *gin.Context) {
	report, err := h.reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) getBatch(c *gin.Context) {
	batchID := c.Param("id")
	reports, err := h.reports.ListBatch(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "reports": reports})
}

// readDocuments loads every uploaded file into memory. It writes the error
// response itself and reports false when the request cannot be processed.
func (h *Handler) readDocuments(c *gin.Context) ([]models.Document, bool) {
	maxBody := h.limits.MaxUploadBytes*int64(h.limits.MaxFiles) + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return nil, false
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required"})
		return nil, false
	}
	if len(files) > h.limits.MaxFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d files per request", h.limits.MaxFiles)})
		return nil, false
	}

	docs := make([]models.Document, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if fh.Size > h.limits.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("%s exceeds the %d MB limit", name, h.limits.MaxUploadBytes>>20),
			})
			return nil, false
		}
		data, err := readFile(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read %s failed", name)})
			return nil, false
		}
		docs = append(docs, models.Document{
			ID:       uuid.NewString(),
			FileName: name,
			MimeType: http.DetectContentType(data[:min(len(data), sniffLen)]),
			Data:     data,
		})
	}
	return docs, true
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": queueErrorMessage(err)})
	case errors.Is(err, worker.ErrDispatcherStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": queueErrorMessage(err)})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func queueErrorMessage(err error) string {
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		return "server is busy, please retry"
	case errors.Is(err, worker.ErrDispatcherStopped):
		return "server is shutting down"
	default:
		return err.Error()
	}
}
