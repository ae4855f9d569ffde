package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/unilab/slotbook-api/internal/civiltime"
	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
	"github.com/unilab/slotbook-api/pkg/outcome"
)

type reservationRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.ReservationDetail, error)
	Claim(ctx context.Context, id, studentID string, claimedAt time.Time) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ReservationDetail, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReservationService handles slot claims and removals. The pre-claim
// checks produce precise failure codes, but they are advisory only: the
// conditional update and the student-overlap exclusion constraint decide
// who actually gets a contested slot.
type ReservationService struct {
	repo      reservationRepository
	converter *civiltime.Converter
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewReservationService constructs a ReservationService.
func NewReservationService(repo reservationRepository, converter *civiltime.Converter, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		repo:      repo,
		converter: converter,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Claim assigns the slot to the student. Checks run in a fixed order so
// callers get the most specific failure: unknown slot, already claimed,
// blocked window, slot start in the past. Two students racing for the
// same slot are resolved by the database, not these checks: exactly one
// conditional update wins, the loser is reported the slot as taken.
func (s *ReservationService) Claim(ctx context.Context, id string, claims *models.JWTClaims) outcome.Outcome[*models.ReservationReadModel] {
	fail := func(err *appErrors.Error, metricOutcome string) outcome.Outcome[*models.ReservationReadModel] {
		s.metrics.RecordSlotClaim(metricOutcome)
		return outcome.Failure[*models.ReservationReadModel](err)
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(appErrors.Clone(appErrors.ErrNotFound, "reservation not found"), "not_found")
		}
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation"), "error")
	}
	if detail.StudentID != nil {
		return fail(appErrors.Clone(appErrors.ErrAlreadyClaimed, ""), "already_claimed")
	}
	if detail.WindowBlocked {
		return fail(appErrors.Clone(appErrors.ErrWindowBlocked, ""), "blocked")
	}
	now := s.now()
	if !detail.Period.Start.After(now) {
		return fail(appErrors.Clone(appErrors.ErrSlotInPast, ""), "past")
	}

	writeStart := time.Now()
	claimed, err := s.repo.Claim(ctx, id, claims.UserID, now)
	s.metrics.ObserveDBQuery("reservation_claim", time.Since(writeStart))
	if err != nil {
		mapped := appErrors.FromPostgres(err, appErrors.ErrOverlappingClaim)
		if appErrors.Is(mapped, appErrors.ErrOverlappingClaim) {
			return fail(mapped, "overlap")
		}
		s.logger.Error("failed to claim reservation",
			zap.String("reservation_id", id),
			zap.Error(err))
		return fail(mapped, "error")
	}
	if !claimed {
		// Lost the race: another claim landed between the check and the
		// update.
		return fail(appErrors.Clone(appErrors.ErrAlreadyClaimed, ""), "already_claimed")
	}

	s.metrics.RecordSlotClaim("claimed")
	s.invalidateListCache(ctx)
	s.logger.Info("slot claimed",
		zap.String("reservation_id", id),
		zap.String("student_id", claims.UserID))

	return outcome.Success(&models.ReservationReadModel{
		ID:          detail.ID,
		StartLocal:  s.converter.ToLocal(detail.Period.Start).String(),
		EndLocal:    s.converter.ToLocal(detail.Period.End).String(),
		Claimed:     true,
		StudentName: &claims.FullName,
	})
}

// ListMine returns the student's reservations ordered by start time.
func (s *ReservationService) ListMine(ctx context.Context, claims *models.JWTClaims) outcome.Outcome[[]models.ReservationReadModel] {
	slots, err := s.repo.ListByStudent(ctx, claims.UserID)
	if err != nil {
		return outcome.Failure[[]models.ReservationReadModel](
			appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations"))
	}
	result := make([]models.ReservationReadModel, 0, len(slots))
	for i := range slots {
		slot := &slots[i]
		result = append(result, models.ReservationReadModel{
			ID:          slot.ID,
			StartLocal:  s.converter.ToLocal(slot.Period.Start).String(),
			EndLocal:    s.converter.ToLocal(slot.Period.End).String(),
			Claimed:     slot.StudentID != nil,
			StudentName: slot.StudentName,
		})
	}
	return outcome.Success(result)
}

// Delete removes a single slot from its window. The owning teacher or an
// admin may delete any slot, including a claimed one; removing a claimed
// slot cancels the student's reservation, so it is logged loudly.
func (s *ReservationService) Delete(ctx context.Context, id string, claims *models.JWTClaims) outcome.Outcome[outcome.Unit] {
	fail := outcome.Failure[outcome.Unit]

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(appErrors.Clone(appErrors.ErrNotFound, "reservation not found"))
		}
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation"))
	}
	if claims.Role != models.RoleAdmin && detail.WindowTeacherID != claims.UserID {
		return fail(appErrors.Clone(appErrors.ErrForbidden, "reservation belongs to another teacher's availability"))
	}

	if detail.StudentID != nil {
		s.logger.Warn("deleting claimed reservation",
			zap.String("reservation_id", id),
			zap.String("student_id", *detail.StudentID))
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reservation"))
	}
	if !deleted {
		return fail(appErrors.Clone(appErrors.ErrNotFound, "reservation not found"))
	}

	s.invalidateListCache(ctx)
	s.logger.Info("reservation deleted", zap.String("reservation_id", id))
	return outcome.Ok()
}

func (s *ReservationService) invalidateListCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, availabilityListCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}
