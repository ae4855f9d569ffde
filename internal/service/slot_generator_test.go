package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unilab/slotbook-api/internal/civiltime"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
)

func newTestGenerator(t *testing.T) *SlotGenerator {
	t.Helper()
	converter, err := civiltime.NewConverter("Europe/Warsaw")
	require.NoError(t, err)
	return NewSlotGenerator(converter)
}

func baseRequest() GenerateSlotsRequest {
	return GenerateSlotsRequest{
		TeacherID:           "teacher-1",
		RoomID:              "room-1",
		StartDate:           civiltime.Date{Year: 2025, Month: time.June, Day: 2},
		EndDate:             civiltime.Date{Year: 2025, Month: time.June, Day: 6},
		DailyStart:          civiltime.TimeOfDay{Hour: 9, Minute: 0},
		DailyEnd:            civiltime.TimeOfDay{Hour: 11, Minute: 0},
		SlotDurationMinutes: 30,
	}
}

func TestGenerateProducesExpectedSlotCount(t *testing.T) {
	gen := newTestGenerator(t)

	// 5 days x 4 slots of 30 minutes between 09:00 and 11:00.
	result := gen.Generate(baseRequest())
	require.True(t, result.IsSuccess())

	window := result.Value()
	assert.Len(t, window.Periods, 20)
	assert.NotEmpty(t, window.ID)
	assert.Equal(t, "teacher-1", window.TeacherID)
	assert.Equal(t, 30, window.SlotDurationMinutes)
}

func TestGenerateSlotsAreOrderedAndDisjoint(t *testing.T) {
	gen := newTestGenerator(t)

	result := gen.Generate(baseRequest())
	require.True(t, result.IsSuccess())

	periods := result.Value().Periods
	for i := 1; i < len(periods); i++ {
		assert.True(t, periods[i-1].Start.Before(periods[i].Start), "slots out of order at %d", i)
		assert.False(t, periods[i-1].Overlaps(periods[i]), "slots overlap at %d", i)
	}
	for _, p := range periods {
		assert.Equal(t, 30*time.Minute, p.Duration())
	}
}

func TestGenerateSpanCoversFirstToLastSlot(t *testing.T) {
	gen := newTestGenerator(t)

	result := gen.Generate(baseRequest())
	require.True(t, result.IsSuccess())

	window := result.Value()
	first := window.Periods[0]
	last := window.Periods[len(window.Periods)-1]
	assert.True(t, window.Span.Start.Equal(first.Start))
	assert.True(t, window.Span.End.Equal(last.End))
}

func TestGenerateDropsRemainder(t *testing.T) {
	gen := newTestGenerator(t)

	req := baseRequest()
	req.StartDate = civiltime.Date{Year: 2025, Month: time.June, Day: 2}
	req.EndDate = req.StartDate
	req.DailyStart = civiltime.TimeOfDay{Hour: 9, Minute: 0}
	req.DailyEnd = civiltime.TimeOfDay{Hour: 10, Minute: 50}
	req.SlotDurationMinutes = 30

	// 110 minutes of range yields 3 whole slots; the trailing 20 minutes
	// are dropped without error.
	result := gen.Generate(req)
	require.True(t, result.IsSuccess())
	assert.Len(t, result.Value().Periods, 3)
}

func TestGenerateSingleDay(t *testing.T) {
	gen := newTestGenerator(t)

	req := baseRequest()
	req.EndDate = req.StartDate

	result := gen.Generate(req)
	require.True(t, result.IsSuccess())
	assert.Len(t, result.Value().Periods, 4)
}

func TestGenerateRejectsInvertedDates(t *testing.T) {
	gen := newTestGenerator(t)

	req := baseRequest()
	req.StartDate = civiltime.Date{Year: 2025, Month: time.June, Day: 7}
	req.EndDate = civiltime.Date{Year: 2025, Month: time.June, Day: 2}

	result := gen.Generate(req)
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrValidation.Code, result.Err().Code)
}

func TestGenerateRejectsInvertedDailyRange(t *testing.T) {
	gen := newTestGenerator(t)

	req := baseRequest()
	req.DailyStart = civiltime.TimeOfDay{Hour: 11, Minute: 0}
	req.DailyEnd = civiltime.TimeOfDay{Hour: 9, Minute: 0}

	result := gen.Generate(req)
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrValidation.Code, result.Err().Code)
}

func TestGenerateRejectsNonPositiveDuration(t *testing.T) {
	gen := newTestGenerator(t)

	req := baseRequest()
	req.SlotDurationMinutes = 0

	result := gen.Generate(req)
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrValidation.Code, result.Err().Code)
}

func TestGenerateAbortsWhenSlotFallsInDSTGap(t *testing.T) {
	gen := newTestGenerator(t)

	// Warsaw skips 02:00-03:00 on 2025-03-30. A range covering that hour
	// must reject the entire declaration, not just the missing slots.
	req := baseRequest()
	req.StartDate = civiltime.Date{Year: 2025, Month: time.March, Day: 29}
	req.EndDate = civiltime.Date{Year: 2025, Month: time.March, Day: 31}
	req.DailyStart = civiltime.TimeOfDay{Hour: 2, Minute: 0}
	req.DailyEnd = civiltime.TimeOfDay{Hour: 3, Minute: 0}

	result := gen.Generate(req)
	require.True(t, result.IsFailure())
	assert.Equal(t, appErrors.ErrInvalidLocalTime.Code, result.Err().Code)
}

func TestGenerateDayMajorTimeMinorOrder(t *testing.T) {
	gen := newTestGenerator(t)

	req := baseRequest()
	req.EndDate = req.StartDate.AddDays(1)
	req.DailyEnd = civiltime.TimeOfDay{Hour: 10, Minute: 0}

	result := gen.Generate(req)
	require.True(t, result.IsSuccess())

	periods := result.Value().Periods
	require.Len(t, periods, 4)
	// Both slots of day one precede both slots of day two.
	assert.True(t, periods[1].End.Before(periods[2].Start))
	assert.Equal(t, 24*time.Hour, periods[2].Start.Sub(periods[0].Start))
}
