package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/unilab/slotbook-api/internal/civiltime"
	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
	"github.com/unilab/slotbook-api/pkg/outcome"
)

// GenerateSlotsRequest describes one availability declaration: a calendar
// date range, a daily wall-clock range and a slot length.
type GenerateSlotsRequest struct {
	TeacherID           string
	RoomID              string
	StartDate           civiltime.Date
	EndDate             civiltime.Date
	DailyStart          civiltime.TimeOfDay
	DailyEnd            civiltime.TimeOfDay
	SlotDurationMinutes int
}

// SlotGenerator expands an availability declaration into an ordered set of
// disjoint absolute-time slots. Generation is pure computation: it touches
// no storage and either produces the full slot set or fails without
// emitting anything.
type SlotGenerator struct {
	converter *civiltime.Converter
}

// NewSlotGenerator binds the generator to the configured zone converter.
func NewSlotGenerator(converter *civiltime.Converter) *SlotGenerator {
	return &SlotGenerator{converter: converter}
}

// Generate returns a fully formed, not yet persisted availability window
// whose Periods tile each day of the range. Slots are ordered by calendar
// day then time of day. A daily span that is not an exact multiple of the
// slot duration keeps only the whole slots; the remainder is dropped, not
// rejected. Any slot whose local start or end falls in a DST gap aborts
// the whole generation.
func (g *SlotGenerator) Generate(req GenerateSlotsRequest) outcome.Outcome[*models.Availability] {
	if req.StartDate.After(req.EndDate) {
		return outcome.Failure[*models.Availability](
			appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date"))
	}
	if req.DailyEnd.MinutesOfDay() <= req.DailyStart.MinutesOfDay() {
		return outcome.Failure[*models.Availability](
			appErrors.Clone(appErrors.ErrValidation, "daily end time must be after daily start time"))
	}
	if req.SlotDurationMinutes <= 0 {
		return outcome.Failure[*models.Availability](
			appErrors.Clone(appErrors.ErrValidation, "slot duration must be positive"))
	}

	days := req.StartDate.DaysUntil(req.EndDate) + 1
	dailySpan := req.DailyEnd.MinutesOfDay() - req.DailyStart.MinutesOfDay()
	slotsPerDay := dailySpan / req.SlotDurationMinutes

	periods := make([]models.Period, 0, days*slotsPerDay)
	for day := 0; day < days; day++ {
		date := req.StartDate.AddDays(day)
		for slot := 0; slot < slotsPerDay; slot++ {
			startMinutes := req.DailyStart.MinutesOfDay() + slot*req.SlotDurationMinutes
			localStart := civiltime.AtMinutes(date, startMinutes)
			localEnd := civiltime.AtMinutes(date, startMinutes+req.SlotDurationMinutes)

			absStart, convErr := g.converter.ToAbsolute(localStart, civiltime.Earliest)
			if convErr != nil {
				return outcome.Failure[*models.Availability](convErr)
			}
			absEnd, convErr := g.converter.ToAbsolute(localEnd, civiltime.Earliest)
			if convErr != nil {
				return outcome.Failure[*models.Availability](convErr)
			}

			period := models.NewPeriod(absStart, absEnd)
			if period.IsEmpty() {
				return outcome.Failure[*models.Availability](
					appErrors.Clone(appErrors.ErrInvalidLocalTime,
						fmt.Sprintf("slot %s collapses across a DST transition", localStart)))
			}
			periods = append(periods, period)
		}
	}

	window := &models.Availability{
		ID:                  uuid.NewString(),
		TeacherID:           req.TeacherID,
		RoomID:              req.RoomID,
		SlotDurationMinutes: req.SlotDurationMinutes,
		Periods:             periods,
	}
	if len(periods) > 0 {
		window.Span = models.NewPeriod(periods[0].Start, periods[len(periods)-1].End)
	}

	return outcome.Success(window)
}
