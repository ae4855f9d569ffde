package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unilab/slotbook-api/internal/civiltime"
	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
	"github.com/unilab/slotbook-api/pkg/export"
	"github.com/unilab/slotbook-api/pkg/jobs"
	"github.com/unilab/slotbook-api/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatJSON ExportFormat = "json"
)

// ExportStatus tracks a job through its lifecycle.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "queued"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// ExportJob is the in-memory record of one export request. Exports are
// ephemeral artifacts with a short download TTL, so they live in process
// memory rather than a table.
type ExportJob struct {
	ID          string       `json:"id"`
	TeacherID   string       `json:"-"`
	Format      ExportFormat `json:"format"`
	Status      ExportStatus `json:"status"`
	RequestedAt time.Time    `json:"requested_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DownloadURL string       `json:"download_url,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type exportReservationRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ReservationExportRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders a teacher's reservation roster to downloadable
// files. Requests are accepted immediately and rendered by a background
// worker; the caller polls status until a signed download URL appears.
type ExportService struct {
	reservations exportReservationRepository
	storage      fileStorage
	signer       *storage.SignedURLSigner
	converter    *civiltime.Converter
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          ExportConfig

	renderers map[ExportFormat]datasetRenderer
	queue     *jobs.Queue
	jobsMu    sync.RWMutex
	records   map[string]*ExportJob
}

// NewExportService constructs an ExportService. Call Start before
// accepting requests and Stop on shutdown.
func NewExportService(
	reservations exportReservationRepository,
	fileStore fileStorage,
	signer *storage.SignedURLSigner,
	converter *civiltime.Converter,
	metrics *MetricsService,
	cfg ExportConfig,
	queueCfg jobs.QueueConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}

	s := &ExportService{
		reservations: reservations,
		storage:      fileStore,
		signer:       signer,
		converter:    converter,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		renderers: map[ExportFormat]datasetRenderer{
			ExportFormatCSV:  export.NewCSVExporter(),
			ExportFormatPDF:  export.NewPDFExporter(),
			ExportFormatJSON: export.NewJSONExporter(),
		},
		records: make(map[string]*ExportJob),
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("exports", s.process, queueCfg)
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request enqueues an export of the teacher's reservations.
func (s *ExportService) Request(ctx context.Context, claims *models.JWTClaims, format ExportFormat) (*ExportJob, error) {
	if _, ok := s.renderers[format]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	job := &ExportJob{
		ID:          uuid.NewString(),
		TeacherID:   claims.UserID,
		Format:      format,
		Status:      ExportStatusQueued,
		RequestedAt: time.Now().UTC(),
	}
	s.jobsMu.Lock()
	s.records[job.ID] = job
	s.jobsMu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "reservation_export", Payload: job.ID}); err != nil {
		s.jobsMu.Lock()
		delete(s.records, job.ID)
		s.jobsMu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	s.metrics.RecordExportJob(string(ExportStatusQueued))
	snapshot := *job
	return &snapshot, nil
}

// Status returns the current state of an export. Only the requesting
// teacher or an admin may inspect it.
func (s *ExportService) Status(id string, claims *models.JWTClaims) (*ExportJob, error) {
	s.jobsMu.RLock()
	job, ok := s.records[id]
	if !ok {
		s.jobsMu.RUnlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	snapshot := *job
	s.jobsMu.RUnlock()

	if claims.Role != models.RoleAdmin && snapshot.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export belongs to another teacher")
	}
	return &snapshot, nil
}

// Open validates a download token and returns the rendered file.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
	}
	return file, nil
}

// Cleanup removes rendered files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

// RunCleanupLoop periodically prunes expired export files until ctx ends.
func (s *ExportService) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup()
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("pruned expired exports", zap.Int("count", len(removed)))
			}
		}
	}
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)
	record := s.transition(id, ExportStatusProcessing, func(*ExportJob) {})
	if record == nil {
		return fmt.Errorf("export %s not tracked", id)
	}

	dataset, err := s.buildDataset(ctx, record.TeacherID)
	if err != nil {
		s.markFailed(id, err)
		return err
	}

	payload, err := s.renderers[record.Format].Render(dataset)
	if err != nil {
		s.markFailed(id, err)
		return err
	}

	filename := fmt.Sprintf("reservations_%s_%s.%s", record.TeacherID, time.Now().UTC().Format("20060102T150405"), record.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.markFailed(id, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		s.markFailed(id, err)
		return err
	}

	url := fmt.Sprintf("%s/exports/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
	now := time.Now().UTC()
	s.transition(id, ExportStatusCompleted, func(r *ExportJob) {
		r.CompletedAt = &now
		r.DownloadURL = url
		r.ExpiresAt = &expiresAt
	})
	s.metrics.RecordExportJob(string(ExportStatusCompleted))
	s.logger.Info("export completed",
		zap.String("export_id", id),
		zap.String("format", string(record.Format)))
	return nil
}

func (s *ExportService) buildDataset(ctx context.Context, teacherID string) (export.Dataset, error) {
	rows, err := s.reservations.ListByTeacher(ctx, teacherID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load reservations for export: %w", err)
	}

	dataset := export.Dataset{
		Title:   "Reservations",
		Headers: []string{"Date", "Start", "End", "Room", "Status", "Student", "Claimed At"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for i := range rows {
		row := &rows[i]
		localStart := s.converter.ToLocal(row.Period.Start)
		localEnd := s.converter.ToLocal(row.Period.End)

		status := "open"
		if row.WindowBlocked {
			status = "blocked"
		}
		student, claimedAt := "", ""
		if row.StudentID != nil {
			status = "claimed"
			if row.StudentName != nil {
				student = *row.StudentName
			}
			if row.ClaimedAt != nil {
				claimedAt = s.converter.ToLocal(*row.ClaimedAt).String()
			}
		}

		dataset.Rows = append(dataset.Rows, []string{
			localStart.Date.String(),
			localStart.Time.String(),
			localEnd.Time.String(),
			row.RoomName,
			status,
			student,
			claimedAt,
		})
	}
	return dataset, nil
}

func (s *ExportService) transition(id string, status ExportStatus, mutate func(*ExportJob)) *ExportJob {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.records[id]
	if !ok {
		return nil
	}
	job.Status = status
	mutate(job)
	snapshot := *job
	return &snapshot
}

func (s *ExportService) markFailed(id string, cause error) {
	s.transition(id, ExportStatusFailed, func(r *ExportJob) {
		r.Error = cause.Error()
	})
	s.metrics.RecordExportJob(string(ExportStatusFailed))
	s.logger.Error("export failed", zap.String("export_id", id), zap.Error(cause))
}
