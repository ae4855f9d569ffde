package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Period is a half-open absolute time interval [Start, End), stored in
// PostgreSQL as a tstzrange. Half-open bounds let adjacent slots tile
// without overlapping.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a period from two instants, normalised to UTC.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: start.UTC(), End: end.UTC()}
}

// IsEmpty reports whether the period contains no instants.
func (p Period) IsEmpty() bool {
	return !p.End.After(p.Start)
}

// Duration returns the length of the period.
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Overlaps reports whether two half-open periods share any instant.
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End) && other.Start.Before(p.End)
}

// Contains reports whether t falls inside the half-open interval.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s,%s)", p.Start.UTC().Format(time.RFC3339Nano), p.End.UTC().Format(time.RFC3339Nano))
}

// Value renders the period as a tstzrange literal.
func (p Period) Value() (driver.Value, error) {
	if p.IsEmpty() {
		return nil, fmt.Errorf("period is empty: %s", p)
	}
	return fmt.Sprintf("[%q,%q)",
		p.Start.UTC().Format(time.RFC3339Nano),
		p.End.UTC().Format(time.RFC3339Nano),
	), nil
}

// Scan parses the tstzrange textual output format, e.g.
// ["2026-01-02 09:00:00+00","2026-01-02 09:30:00+00").
func (p *Period) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		return fmt.Errorf("cannot scan NULL into Period")
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Period", src)
	}

	raw = strings.TrimSpace(raw)
	if len(raw) < 2 {
		return fmt.Errorf("malformed range literal %q", raw)
	}
	if raw == "empty" {
		return fmt.Errorf("refusing to scan empty range into Period")
	}

	body := raw[1 : len(raw)-1]
	parts := splitRangeBody(body)
	if len(parts) != 2 {
		return fmt.Errorf("malformed range literal %q", raw)
	}

	start, err := parseRangeBound(parts[0])
	if err != nil {
		return fmt.Errorf("parse range lower bound: %w", err)
	}
	end, err := parseRangeBound(parts[1])
	if err != nil {
		return fmt.Errorf("parse range upper bound: %w", err)
	}

	p.Start = start.UTC()
	p.End = end.UTC()
	return nil
}

// splitRangeBody splits on the comma separating bounds, honouring quotes.
func splitRangeBody(body string) []string {
	inQuotes := false
	for i, r := range body {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return []string{body[:i], body[i+1:]}
			}
		}
	}
	return []string{body}
}

var rangeBoundLayouts = []string{
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseRangeBound(raw string) (time.Time, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" {
		return time.Time{}, fmt.Errorf("unbounded range edge not supported")
	}
	var lastErr error
	for _, layout := range rangeBoundLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
