// Package civiltime converts wall-clock date/times in one configured IANA
// zone to and from absolute instants, with deterministic handling of DST
// gaps and ambiguities.
package civiltime

import (
	"fmt"
	"time"

	appErrors "github.com/unilab/slotbook-api/pkg/errors"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Date is a calendar date with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(other.Year, other.Month, other.Day, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.DaysUntil(other) < 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM string.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MinutesOfDay returns minutes elapsed since midnight.
func (t TimeOfDay) MinutesOfDay() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DateTime is a civil date plus wall-clock time, ambiguous near DST
// transitions until converted.
type DateTime struct {
	Date Date
	Time TimeOfDay
}

func (dt DateTime) String() string {
	return dt.Date.String() + " " + dt.Time.String()
}

// AtMinutes builds the DateTime reached by walking offsetMinutes forward
// from midnight of d, rolling into following days when the offset exceeds
// 24 hours.
func AtMinutes(d Date, offsetMinutes int) DateTime {
	days := offsetMinutes / (24 * 60)
	rem := offsetMinutes % (24 * 60)
	return DateTime{
		Date: d.AddDays(days),
		Time: TimeOfDay{Hour: rem / 60, Minute: rem % 60},
	}
}

// AmbiguityPolicy selects which of two occurrences an ambiguous local time
// (fall-back hour) resolves to.
type AmbiguityPolicy int

const (
	// Earliest picks the first occurrence (pre-transition offset). Default.
	Earliest AmbiguityPolicy = iota
	// Latest picks the second occurrence.
	Latest
)

// Converter binds civil time conversion to one IANA zone.
type Converter struct {
	loc  *time.Location
	name string
}

// NewConverter loads the zone from the IANA database.
func NewConverter(zone string) (*Converter, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &Converter{loc: loc, name: zone}, nil
}

// Zone returns the configured IANA zone name.
func (c *Converter) Zone() string {
	return c.name
}

// dstProbeOffsets cover the transition sizes that occur in practice.
var dstProbeOffsets = []time.Duration{
	-time.Hour,
	time.Hour,
	-30 * time.Minute,
	30 * time.Minute,
}

// ToAbsolute converts a civil date/time in the configured zone to a UTC
// instant. A wall clock that falls inside a DST gap does not exist and
// yields an INVALID_LOCAL_TIME failure. A wall clock that occurs twice is
// resolved by policy. Conversion is pure: same input, same output.
func (c *Converter) ToAbsolute(dt DateTime, policy AmbiguityPolicy) (time.Time, *appErrors.Error) {
	candidate := time.Date(dt.Date.Year, dt.Date.Month, dt.Date.Day, dt.Time.Hour, dt.Time.Minute, 0, 0, c.loc)

	// time.Date normalises nonexistent wall clocks to a neighbouring
	// instant, so a round-trip mismatch means the input sits in a gap.
	if !c.sameWallClock(candidate, dt) {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidLocalTime,
			fmt.Sprintf("local time %s does not exist in %s (DST gap)", dt, c.name))
	}

	// Probe neighbouring instants: if a different instant shows the same
	// wall clock, the input is ambiguous and the policy decides.
	resolved := candidate
	for _, offset := range dstProbeOffsets {
		alt := candidate.Add(offset)
		if !alt.Equal(candidate) && c.sameWallClock(alt, dt) {
			switch policy {
			case Latest:
				if alt.After(resolved) {
					resolved = alt
				}
			default:
				if alt.Before(resolved) {
					resolved = alt
				}
			}
		}
	}

	return resolved.UTC(), nil
}

// ToLocal converts an absolute instant to the zone's wall clock. Two
// distinct instants inside a fall-back hour legitimately collapse to the
// same wall clock; that is a property of civil time, not an error.
func (c *Converter) ToLocal(t time.Time) DateTime {
	local := t.In(c.loc)
	return DateTime{
		Date: Date{Year: local.Year(), Month: local.Month(), Day: local.Day()},
		Time: TimeOfDay{Hour: local.Hour(), Minute: local.Minute()},
	}
}

func (c *Converter) sameWallClock(t time.Time, dt DateTime) bool {
	local := t.In(c.loc)
	return local.Year() == dt.Date.Year &&
		local.Month() == dt.Date.Month &&
		local.Day() == dt.Date.Day &&
		local.Hour() == dt.Time.Hour &&
		local.Minute() == dt.Time.Minute
}
