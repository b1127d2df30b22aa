// Package recurrence expands recurring appointment rules into concrete dates.
package recurrence

import (
	"errors"
	"strings"
	"time"
)

// Pattern is the recurrence pattern of a rule.
type Pattern string

const (
	PatternWeekly   Pattern = "WEEKLY"
	PatternBiweekly Pattern = "BIWEEKLY"
	PatternMonthly  Pattern = "MONTHLY"
	PatternCustom   Pattern = "CUSTOM"
)

const (
	// DefaultOccurrences caps a series when the rule has no explicit cap.
	DefaultOccurrences = 52
	// MaxWindowDays bounds every series regardless of its end date.
	MaxWindowDays = 365
	// InitialBatch is how many occurrences are materialized when a rule is created.
	InitialBatch = 4
)

var (
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	ErrInvalidDate    = errors.New("invalid date")
)

const dateLayout = "2006-01-02"

// ParsePattern parses a pattern name, case-insensitively.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(strings.ToUpper(strings.TrimSpace(s))); p {
	case PatternWeekly, PatternBiweekly, PatternMonthly, PatternCustom:
		return p, nil
	}
	return "", ErrInvalidPattern
}

// Rule describes a family of appointment dates.
type Rule struct {
	Pattern     Pattern
	Frequency   int
	DayOfWeek   *time.Weekday
	DayOfMonth  *int
	StartDate   time.Time
	EndDate     *time.Time
	Occurrences int
}

// Cap returns the effective occurrence cap.
func (r Rule) Cap() int {
	if r.Occurrences <= 0 {
		return DefaultOccurrences
	}
	return r.Occurrences
}

// WindowEnd returns the last date a candidate may fall on.
func (r Rule) WindowEnd() time.Time {
	start := Day(r.StartDate)
	end := start.AddDate(0, 0, MaxWindowDays)
	if r.EndDate != nil {
		if e := Day(*r.EndDate); e.Before(end) {
			end = e
		}
	}
	return end
}

// Generate returns the full series of dates for the rule in ascending order.
func Generate(r Rule) []time.Time {
	return expand(r, r.Cap())
}

// InitialDates returns the occurrences materialized at creation time.
func InitialDates(r Rule) []time.Time {
	limit := r.Cap()
	if limit > InitialBatch {
		limit = InitialBatch
	}
	return expand(r, limit)
}

// Continue returns the dates of the series that come strictly after `after`
// and no later than `horizon`, given that `existing` occurrences were already
// materialized. The series cap applies to the total.
func Continue(r Rule, existing int, after, horizon time.Time) []time.Time {
	remaining := r.Cap() - existing
	if remaining <= 0 {
		return nil
	}
	after = Day(after)
	horizon = Day(horizon)

	series := Generate(r)
	out := make([]time.Time, 0, remaining)
	for _, d := range series {
		if !d.After(after) {
			continue
		}
		if d.After(horizon) || len(out) == remaining {
			break
		}
		out = append(out, d)
	}
	return out
}

func expand(r Rule, limit int) []time.Time {
	anchor := Day(r.StartDate)
	end := r.WindowEnd()
	if end.Before(anchor) || limit <= 0 {
		return nil
	}

	dates := make([]time.Time, 0, limit)
	for current := anchor; !current.After(end); current = current.AddDate(0, 0, 1) {
		if len(dates) >= limit {
			break
		}
		if r.matches(anchor, current) {
			dates = append(dates, current)
		}
	}
	return dates
}

func (r Rule) matches(anchor, candidate time.Time) bool {
	weeks := weeksBetween(anchor, candidate)

	switch r.Pattern {
	case PatternWeekly:
		want := anchor.Weekday()
		if r.DayOfWeek != nil {
			want = *r.DayOfWeek
		}
		return candidate.Weekday() == want
	case PatternBiweekly:
		if r.DayOfWeek == nil {
			return false
		}
		return candidate.Weekday() == *r.DayOfWeek && weeks%2 == 0
	case PatternMonthly:
		want := anchor.Day()
		if r.DayOfMonth != nil {
			want = *r.DayOfMonth
		}
		return candidate.Day() == want
	case PatternCustom:
		freq := r.Frequency
		if freq < 1 {
			freq = 1
		}
		return weeks%freq == 0 && candidate.Weekday() == anchor.Weekday()
	}
	return false
}

func weeksBetween(anchor, candidate time.Time) int {
	days := int(candidate.Sub(anchor).Hours() / 24)
	return days / 7
}

// Day truncates t to a calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Day(t), nil
	}
	return time.Time{}, ErrInvalidDate
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ValidTime reports whether s is a 24h HH:MM clock time.
func ValidTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}
