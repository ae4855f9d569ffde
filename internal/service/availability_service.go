package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unilab/slotbook-api/internal/civiltime"
	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
	"github.com/unilab/slotbook-api/pkg/outcome"
)

type availabilityRepository interface {
	CreateWithSlots(ctx context.Context, window *models.Availability, slots []models.Reservation) error
	FindByID(ctx context.Context, id string) (*models.Availability, error)
	FindDetailByID(ctx context.Context, id string) (*models.AvailabilityDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityDetail, error)
	ListUnblocked(ctx context.Context) ([]models.AvailabilityDetail, error)
	SetBlocked(ctx context.Context, id string, blocked bool) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type availabilitySlotRepository interface {
	ListByAvailability(ctx context.Context, availabilityID string) ([]models.ReservationDetail, error)
}

// DeclareAvailabilityRequest is the payload for declaring a window.
// Dates and times are wall-clock values in the configured zone.
type DeclareAvailabilityRequest struct {
	RoomID              string `json:"room_id" validate:"required,uuid4"`
	StartDate           string `json:"start_date" validate:"required"`
	EndDate             string `json:"end_date" validate:"required"`
	DailyStart          string `json:"daily_start" validate:"required"`
	DailyEnd            string `json:"daily_end" validate:"required"`
	SlotDurationMinutes int    `json:"slot_duration_minutes" validate:"required,gt=0"`
}

const availabilityListCachePrefix = "availabilities:list"

// AvailabilityService orchestrates window declaration, listing, blocking
// and deletion. Overlap between windows is never pre-checked in memory:
// the write is attempted and the database exclusion constraint is the
// authority, reported back as an overlap failure.
type AvailabilityService struct {
	repo      availabilityRepository
	slots     availabilitySlotRepository
	generator *SlotGenerator
	converter *civiltime.Converter
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(
	repo availabilityRepository,
	slots availabilitySlotRepository,
	generator *SlotGenerator,
	converter *civiltime.Converter,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		repo:      repo,
		slots:     slots,
		generator: generator,
		converter: converter,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Declare expands the request into slots and persists the window with its
// unclaimed reservations in one transaction. The whole declaration either
// lands or fails: a DST gap in any slot, or an overlap with an existing
// window for the same teacher and room, rejects everything.
func (s *AvailabilityService) Declare(ctx context.Context, teacherID string, req DeclareAvailabilityRequest) outcome.Outcome[*models.AvailabilityReadModel] {
	fail := outcome.Failure[*models.AvailabilityReadModel]

	if err := s.validator.Struct(req); err != nil {
		return fail(appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload"))
	}

	startDate, err := civiltime.ParseDate(req.StartDate)
	if err != nil {
		return fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start_date: %v", err)))
	}
	endDate, err := civiltime.ParseDate(req.EndDate)
	if err != nil {
		return fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid end_date: %v", err)))
	}
	dailyStart, err := civiltime.ParseTimeOfDay(req.DailyStart)
	if err != nil {
		return fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid daily_start: %v", err)))
	}
	dailyEnd, err := civiltime.ParseTimeOfDay(req.DailyEnd)
	if err != nil {
		return fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid daily_end: %v", err)))
	}

	generated := s.generator.Generate(GenerateSlotsRequest{
		TeacherID:           teacherID,
		RoomID:              req.RoomID,
		StartDate:           startDate,
		EndDate:             endDate,
		DailyStart:          dailyStart,
		DailyEnd:            dailyEnd,
		SlotDurationMinutes: req.SlotDurationMinutes,
	})
	if generated.IsFailure() {
		return fail(generated.Err())
	}

	window := generated.Value()
	if len(window.Periods) == 0 {
		return fail(appErrors.Clone(appErrors.ErrValidation, "slot duration exceeds the daily time range, no slots would be created"))
	}

	slots := make([]models.Reservation, len(window.Periods))
	for i, period := range window.Periods {
		slots[i] = models.Reservation{
			AvailabilityID: window.ID,
			TeacherID:      window.TeacherID,
			RoomID:         window.RoomID,
			Period:         period,
		}
	}

	writeStart := time.Now()
	err = s.repo.CreateWithSlots(ctx, window, slots)
	s.metrics.ObserveDBQuery("availability_create_with_slots", time.Since(writeStart))
	if err != nil {
		mapped := appErrors.FromPostgres(err, appErrors.ErrOverlappingAvailability)
		if !appErrors.Is(mapped, appErrors.ErrOverlappingAvailability) {
			s.logger.Error("failed to persist availability",
				zap.String("teacher_id", teacherID),
				zap.Error(err))
		}
		return fail(mapped)
	}

	s.metrics.RecordWindowCreated()
	s.invalidateListCache(ctx)
	s.logger.Info("availability declared",
		zap.String("availability_id", window.ID),
		zap.String("teacher_id", teacherID),
		zap.Int("slots", len(slots)))

	detail, err := s.repo.FindDetailByID(ctx, window.ID)
	if err != nil {
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load declared availability"))
	}

	readModel, buildErr := s.buildReadModel(ctx, detail)
	if buildErr != nil {
		return fail(buildErr)
	}
	return outcome.Success(readModel)
}

// Get returns one window with its slots. Students only see unblocked
// windows; the owning teacher and admins see everything.
func (s *AvailabilityService) Get(ctx context.Context, id string, claims *models.JWTClaims) outcome.Outcome[*models.AvailabilityReadModel] {
	fail := outcome.Failure[*models.AvailabilityReadModel]

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(appErrors.Clone(appErrors.ErrNotFound, "availability not found"))
		}
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability"))
	}
	if claims.Role == models.RoleStudent && detail.Blocked {
		return fail(appErrors.Clone(appErrors.ErrNotFound, "availability not found"))
	}

	readModel, buildErr := s.buildReadModel(ctx, detail)
	if buildErr != nil {
		return fail(buildErr)
	}
	return outcome.Success(readModel)
}

// List returns the caller's scoped view: teachers get their own windows
// including blocked ones, students get every unblocked window. The
// student listing is cached since it is the hot browse path.
func (s *AvailabilityService) List(ctx context.Context, claims *models.JWTClaims) outcome.Outcome[[]models.AvailabilityReadModel] {
	fail := outcome.Failure[[]models.AvailabilityReadModel]

	if claims.Role == models.RoleTeacher {
		windows, err := s.repo.ListByTeacher(ctx, claims.UserID)
		if err != nil {
			return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availabilities"))
		}
		return s.toReadModels(ctx, windows)
	}

	cacheKey := availabilityListCachePrefix + ":unblocked"
	var cached []models.AvailabilityReadModel
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return outcome.Success(cached)
	}

	windows, err := s.repo.ListUnblocked(ctx)
	if err != nil {
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availabilities"))
	}
	result := s.toReadModels(ctx, windows)
	if result.IsSuccess() {
		if err := s.cache.Set(ctx, cacheKey, result.Value(), 0); err != nil {
			s.logger.Warn("failed to cache availability listing", zap.Error(err))
		}
	}
	return result
}

// Block marks the window blocked. Blocking an already blocked window is a
// no-op success so retries stay safe. Claimed slots are untouched.
func (s *AvailabilityService) Block(ctx context.Context, id string, claims *models.JWTClaims) outcome.Outcome[outcome.Unit] {
	return s.setBlocked(ctx, id, claims, true)
}

// Unblock clears the blocked flag with the same idempotent semantics.
func (s *AvailabilityService) Unblock(ctx context.Context, id string, claims *models.JWTClaims) outcome.Outcome[outcome.Unit] {
	return s.setBlocked(ctx, id, claims, false)
}

func (s *AvailabilityService) setBlocked(ctx context.Context, id string, claims *models.JWTClaims, blocked bool) outcome.Outcome[outcome.Unit] {
	fail := outcome.Failure[outcome.Unit]

	window, authErr := s.authorizeWindow(ctx, id, claims)
	if authErr != nil {
		return fail(authErr)
	}
	if window.Blocked == blocked {
		return outcome.Ok()
	}

	updated, err := s.repo.SetBlocked(ctx, id, blocked)
	if err != nil {
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability"))
	}
	if !updated {
		return fail(appErrors.Clone(appErrors.ErrNotFound, "availability not found"))
	}

	s.invalidateListCache(ctx)
	s.logger.Info("availability block state changed",
		zap.String("availability_id", id),
		zap.Bool("blocked", blocked))
	return outcome.Ok()
}

// Delete removes the window and all of its slots, claimed or not.
func (s *AvailabilityService) Delete(ctx context.Context, id string, claims *models.JWTClaims) outcome.Outcome[outcome.Unit] {
	fail := outcome.Failure[outcome.Unit]

	if _, authErr := s.authorizeWindow(ctx, id, claims); authErr != nil {
		return fail(authErr)
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fail(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability"))
	}
	if !deleted {
		return fail(appErrors.Clone(appErrors.ErrNotFound, "availability not found"))
	}

	s.invalidateListCache(ctx)
	s.logger.Info("availability deleted", zap.String("availability_id", id))
	return outcome.Ok()
}

// authorizeWindow loads the window and verifies the caller may manage it:
// the owning teacher or an admin.
func (s *AvailabilityService) authorizeWindow(ctx context.Context, id string, claims *models.JWTClaims) (*models.Availability, *appErrors.Error) {
	window, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if claims.Role != models.RoleAdmin && window.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "availability belongs to another teacher")
	}
	return window, nil
}

func (s *AvailabilityService) invalidateListCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, availabilityListCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

func (s *AvailabilityService) toReadModels(ctx context.Context, windows []models.AvailabilityDetail) outcome.Outcome[[]models.AvailabilityReadModel] {
	result := make([]models.AvailabilityReadModel, 0, len(windows))
	for i := range windows {
		readModel, err := s.buildReadModel(ctx, &windows[i])
		if err != nil {
			return outcome.Failure[[]models.AvailabilityReadModel](err)
		}
		result = append(result, *readModel)
	}
	return outcome.Success(result)
}

// buildReadModel projects a window into its API shape. The calendar
// bounds are derived from the min and max slot periods converted back to
// the configured zone; nothing date-shaped is stored.
func (s *AvailabilityService) buildReadModel(ctx context.Context, detail *models.AvailabilityDetail) (*models.AvailabilityReadModel, *appErrors.Error) {
	readModel := &models.AvailabilityReadModel{
		ID:                  detail.ID,
		TeacherName:         detail.TeacherName,
		RoomName:            detail.RoomName,
		SlotDurationMinutes: detail.SlotDurationMinutes,
		Blocked:             detail.Blocked,
	}

	slots, err := s.slots.ListByAvailability(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability slots")
	}

	readModel.SlotCount = len(slots)
	readModel.Reservations = make([]models.ReservationReadModel, 0, len(slots))

	var minStart, maxEnd time.Time
	startMinutes, endMinutes := -1, -1
	for i := range slots {
		slot := &slots[i]
		if minStart.IsZero() || slot.Period.Start.Before(minStart) {
			minStart = slot.Period.Start
		}
		if slot.Period.End.After(maxEnd) {
			maxEnd = slot.Period.End
		}

		localStart := s.converter.ToLocal(slot.Period.Start)
		localEnd := s.converter.ToLocal(slot.Period.End)
		if startMinutes < 0 || localStart.Time.MinutesOfDay() < startMinutes {
			startMinutes = localStart.Time.MinutesOfDay()
		}
		if localEnd.Time.MinutesOfDay() > endMinutes {
			endMinutes = localEnd.Time.MinutesOfDay()
		}

		claimed := slot.StudentID != nil
		if claimed {
			readModel.ReservedCount++
		}
		readModel.Reservations = append(readModel.Reservations, models.ReservationReadModel{
			ID:          slot.ID,
			StartLocal:  localStart.String(),
			EndLocal:    localEnd.String(),
			Claimed:     claimed,
			StudentName: slot.StudentName,
		})
	}

	if len(slots) > 0 {
		readModel.StartDate = s.converter.ToLocal(minStart).Date.String()
		readModel.EndDate = s.converter.ToLocal(maxEnd.Add(-time.Nanosecond)).Date.String()
		readModel.StartTime = civiltime.TimeOfDay{Hour: startMinutes / 60, Minute: startMinutes % 60}.String()
		readModel.EndTime = civiltime.TimeOfDay{Hour: endMinutes / 60, Minute: endMinutes % 60}.String()
	}
	return readModel, nil
}
