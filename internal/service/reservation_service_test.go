package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unilab/slotbook-api/internal/civiltime"
	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
)

type mockReservationRepo struct {
	mu       sync.Mutex
	details  map[string]*models.ReservationDetail
	claimErr error
	deleted  []string
}

func (m *mockReservationRepo) FindDetailByID(ctx context.Context, id string) (*models.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	detail, ok := m.details[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *detail
	return &cp, nil
}

func (m *mockReservationRepo) Claim(ctx context.Context, id, studentID string, claimedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return false, m.claimErr
	}
	detail, ok := m.details[id]
	if !ok || detail.StudentID != nil {
		return false, nil
	}
	detail.StudentID = &studentID
	detail.ClaimedAt = &claimedAt
	return true, nil
}

func (m *mockReservationRepo) ListByStudent(ctx context.Context, studentID string) ([]models.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.ReservationDetail
	for _, detail := range m.details {
		if detail.StudentID != nil && *detail.StudentID == studentID {
			result = append(result, *detail)
		}
	}
	return result, nil
}

func (m *mockReservationRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.details[id]; !ok {
		return false, nil
	}
	delete(m.details, id)
	m.deleted = append(m.deleted, id)
	return true, nil
}

func newReservationTestService(t *testing.T, repo *mockReservationRepo) *ReservationService {
	t.Helper()
	converter, err := civiltime.NewConverter("Europe/Warsaw")
	require.NoError(t, err)
	cache := NewCacheService(nil, nil, 0, nil, false)
	svc := NewReservationService(repo, converter, cache, NewMetricsService(), nil)
	svc.now = func() time.Time {
		return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func futureSlot(id string) *models.ReservationDetail {
	return &models.ReservationDetail{
		Reservation: models.Reservation{
			ID:             id,
			AvailabilityID: "window-1",
			Period: models.NewPeriod(
				time.Date(2025, time.June, 2, 7, 0, 0, 0, time.UTC),
				time.Date(2025, time.June, 2, 7, 30, 0, 0, time.UTC),
			),
		},
		WindowTeacherID: "teacher-1",
	}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, FullName: "Student " + id}
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func TestClaimSucceeds(t *testing.T) {
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{
		"slot-1": futureSlot("slot-1"),
	}}
	svc := newReservationTestService(t, repo)

	result := svc.Claim(context.Background(), "slot-1", studentClaims("student-1"))
	require.True(t, result.IsSuccess())
	assert.True(t, result.Value().Claimed)
	require.NotNil(t, repo.details["slot-1"].StudentID)
	assert.Equal(t, "student-1", *repo.details["slot-1"].StudentID)
}

func TestClaimUnknownSlot(t *testing.T) {
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{}}
	svc := newReservationTestService(t, repo)

	result := svc.Claim(context.Background(), "missing", studentClaims("student-1"))
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrNotFound.Code, result.Err().Code)
}

func TestClaimAlreadyTaken(t *testing.T) {
	slot := futureSlot("slot-1")
	other := "student-0"
	slot.StudentID = &other
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{"slot-1": slot}}
	svc := newReservationTestService(t, repo)

	result := svc.Claim(context.Background(), "slot-1", studentClaims("student-1"))
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrAlreadyClaimed.Code, result.Err().Code)
}

func TestClaimBlockedWindow(t *testing.T) {
	slot := futureSlot("slot-1")
	slot.WindowBlocked = true
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{"slot-1": slot}}
	svc := newReservationTestService(t, repo)

	result := svc.Claim(context.Background(), "slot-1", studentClaims("student-1"))
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrWindowBlocked.Code, result.Err().Code)
}

func TestClaimPastSlot(t *testing.T) {
	slot := futureSlot("slot-1")
	slot.Period = models.NewPeriod(
		time.Date(2025, time.May, 30, 7, 0, 0, 0, time.UTC),
		time.Date(2025, time.May, 30, 7, 30, 0, 0, time.UTC),
	)
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{"slot-1": slot}}
	svc := newReservationTestService(t, repo)

	result := svc.Claim(context.Background(), "slot-1", studentClaims("student-1"))
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrSlotInPast.Code, result.Err().Code)
}

func TestClaimBlockedCheckPrecedesPastCheck(t *testing.T) {
	slot := futureSlot("slot-1")
	slot.WindowBlocked = true
	slot.Period = models.NewPeriod(
		time.Date(2025, time.May, 30, 7, 0, 0, 0, time.UTC),
		time.Date(2025, time.May, 30, 7, 30, 0, 0, time.UTC),
	)
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{"slot-1": slot}}
	svc := newReservationTestService(t, repo)

	result := svc.Claim(context.Background(), "slot-1", studentClaims("student-1"))
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrWindowBlocked.Code, result.Err().Code)
}

func TestClaimStudentOverlapMapsExclusionViolation(t *testing.T) {
	repo := &mockReservationRepo{
		details:  map[string]*models.ReservationDetail{"slot-1": futureSlot("slot-1")},
		claimErr: &pq.Error{Code: "23P01", Constraint: "reservations_student_no_overlap"},
	}
	svc := newReservationTestService(t, repo)

	result := svc.Claim(context.Background(), "slot-1", studentClaims("student-1"))
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrOverlappingClaim.Code, result.Err().Code)
}

func TestClaimConcurrentLoserReportedTaken(t *testing.T) {
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{
		"slot-1": futureSlot("slot-1"),
	}}
	svc := newReservationTestService(t, repo)

	type claimResult struct {
		success bool
		code    string
	}
	results := make(chan claimResult, 2)
	var wg sync.WaitGroup
	for _, student := range []string{"student-1", "student-2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			outcome := svc.Claim(context.Background(), "slot-1", studentClaims(id))
			if outcome.IsSuccess() {
				results <- claimResult{success: true}
				return
			}
			results <- claimResult{code: outcome.Err().Code}
		}(student)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for r := range results {
		if r.success {
			wins++
			continue
		}
		losses++
		assert.Equal(t, appErrors.ErrAlreadyClaimed.Code, r.code)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
}

func TestDeleteClaimedSlotAllowedForOwner(t *testing.T) {
	slot := futureSlot("slot-1")
	student := "student-1"
	slot.StudentID = &student
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{"slot-1": slot}}
	svc := newReservationTestService(t, repo)

	result := svc.Delete(context.Background(), "slot-1", teacherClaims("teacher-1"))
	require.True(t, result.IsSuccess())
	assert.Equal(t, []string{"slot-1"}, repo.deleted)
}

func TestDeleteForbiddenForOtherTeacher(t *testing.T) {
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{
		"slot-1": futureSlot("slot-1"),
	}}
	svc := newReservationTestService(t, repo)

	result := svc.Delete(context.Background(), "slot-1", teacherClaims("teacher-2"))
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrForbidden.Code, result.Err().Code)
	assert.Empty(t, repo.deleted)
}

func TestDeleteAllowedForAdmin(t *testing.T) {
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{
		"slot-1": futureSlot("slot-1"),
	}}
	svc := newReservationTestService(t, repo)

	result := svc.Delete(context.Background(), "slot-1", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.True(t, result.IsSuccess())
}

func TestListMine(t *testing.T) {
	slot := futureSlot("slot-1")
	student := "student-1"
	slot.StudentID = &student
	repo := &mockReservationRepo{details: map[string]*models.ReservationDetail{
		"slot-1": slot,
		"slot-2": futureSlot("slot-2"),
	}}
	svc := newReservationTestService(t, repo)

	result := svc.ListMine(context.Background(), studentClaims("student-1"))
	require.True(t, result.IsSuccess())
	require.Len(t, result.Value(), 1)
	assert.Equal(t, "slot-1", result.Value()[0].ID)
	assert.True(t, result.Value()[0].Claimed)
}
