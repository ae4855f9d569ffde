package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unilab/slotbook-api/internal/civiltime"
	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
	"github.com/unilab/slotbook-api/pkg/jobs"
	"github.com/unilab/slotbook-api/pkg/storage"
)

type exportRowsStub struct {
	rows []models.ReservationExportRow
}

func (s exportRowsStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.ReservationExportRow, error) {
	return s.rows, nil
}

func sampleExportRows() []models.ReservationExportRow {
	start := time.Date(2025, time.June, 2, 7, 0, 0, 0, time.UTC)
	student := "Jan Nowak"
	studentID := "student-1"
	claimedAt := start.Add(-24 * time.Hour)
	return []models.ReservationExportRow{
		{
			ID:       "slot-1",
			Period:   models.NewPeriod(start, start.Add(30*time.Minute)),
			RoomName: "101",
		},
		{
			ID:          "slot-2",
			Period:      models.NewPeriod(start.Add(30*time.Minute), start.Add(time.Hour)),
			RoomName:    "101",
			StudentID:   &studentID,
			StudentName: &student,
			ClaimedAt:   &claimedAt,
		},
	}
}

func newExportServiceForTest(t *testing.T, rows []models.ReservationExportRow) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	converter, err := civiltime.NewConverter("Europe/Warsaw")
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(
		exportRowsStub{rows: rows},
		store,
		signer,
		converter,
		NewMetricsService(),
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour},
		jobs.QueueConfig{Workers: 1, Logger: zap.NewNop()},
		zap.NewNop(),
	)
	return svc, store
}

func exportTeacher() *models.JWTClaims {
	return &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
}

func TestExportRequestRunsToCompletion(t *testing.T) {
	svc, store := newExportServiceForTest(t, sampleExportRows())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Request(ctx, exportTeacher(), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, ExportStatusQueued, job.Status)

	require.Eventually(t, func() bool {
		current, err := svc.Status(job.ID, exportTeacher())
		return err == nil && current.Status == ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	completed, err := svc.Status(job.ID, exportTeacher())
	require.NoError(t, err)
	assert.Contains(t, completed.DownloadURL, "/api/v1/exports/download/")
	require.NotNil(t, completed.ExpiresAt)

	// The rendered file exists and is non-empty.
	entries, err := os.ReadDir(store.Path(""))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestExportStatusScopedToRequester(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Request(ctx, exportTeacher(), ExportFormatJSON)
	require.NoError(t, err)

	_, err = svc.Status(job.ID, &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Status(job.ID, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	_, err := svc.Request(ctx, exportTeacher(), ExportFormat("xlsx"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportDownloadTokenRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t, sampleExportRows())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Request(ctx, exportTeacher(), ExportFormatCSV)
	require.NoError(t, err)

	var url string
	require.Eventually(t, func() bool {
		current, err := svc.Status(job.ID, exportTeacher())
		if err != nil || current.Status != ExportStatusCompleted {
			return false
		}
		url = current.DownloadURL
		return true
	}, 5*time.Second, 10*time.Millisecond)

	token := url[len("/api/v1/exports/download/"):]
	file, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	_, err = svc.Open(token + "x")
	require.Error(t, err)
}
