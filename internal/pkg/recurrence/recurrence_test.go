package recurrence

import (
	"testing"
	"time"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func weekday(d time.Weekday) *time.Weekday { return &d }
func intPtr(v int) *int                   { return &v }

func assertDates(t *testing.T, got []time.Time, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d dates %v, got %d: %v", len(want), want, len(got), got)
	}
	for i := range want {
		if FormatDate(got[i]) != want[i] {
			t.Fatalf("date[%d]: expected %s, got %s", i, want[i], FormatDate(got[i]))
		}
	}
}

func TestGenerateWeeklyWithDayOfWeek(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternWeekly,
		Frequency:   1,
		DayOfWeek:   weekday(time.Monday),
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 4,
	})

	assertDates(t, got, "2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22")
	for i, d := range got {
		if d.Weekday() != time.Monday {
			t.Fatalf("date[%d] is %s, expected Monday", i, d.Weekday())
		}
		if i > 0 && d.Sub(got[i-1]) != 7*24*time.Hour {
			t.Fatalf("date[%d] is not 7 days after previous", i)
		}
	}
}

func TestGenerateWeeklyWithoutDayOfWeekUsesAnchorWeekday(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternWeekly,
		StartDate:   date(t, "2024-01-03"),
		Occurrences: 3,
	})

	assertDates(t, got, "2024-01-03", "2024-01-10", "2024-01-17")
}

func TestGenerateWeeklyDayOfWeekAfterAnchor(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternWeekly,
		DayOfWeek:   weekday(time.Friday),
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 2,
	})

	assertDates(t, got, "2024-01-05", "2024-01-12")
}

func TestGenerateBiweekly(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternBiweekly,
		DayOfWeek:   weekday(time.Monday),
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 3,
	})

	assertDates(t, got, "2024-01-01", "2024-01-15", "2024-01-29")
	for i := 1; i < len(got); i++ {
		if got[i].Sub(got[i-1]) != 14*24*time.Hour {
			t.Fatalf("date[%d] is not 14 days after previous", i)
		}
	}
}

func TestGenerateBiweeklyRequiresDayOfWeek(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternBiweekly,
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 3,
	})
	if len(got) != 0 {
		t.Fatalf("expected no dates without dayOfWeek, got %v", got)
	}
}

func TestGenerateMonthlyDayOfMonth(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternMonthly,
		DayOfMonth:  intPtr(15),
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 3,
	})

	assertDates(t, got, "2024-01-15", "2024-02-15", "2024-03-15")
}

func TestGenerateMonthlyDefaultsToAnchorDay(t *testing.T) {
	got := Generate(Rule{
		Pattern:   PatternMonthly,
		StartDate: date(t, "2024-01-15"),
	})

	if len(got) != 12 {
		t.Fatalf("expected 12 monthly dates inside one year, got %d", len(got))
	}
	if FormatDate(got[11]) != "2024-12-15" {
		t.Fatalf("expected last date 2024-12-15, got %s", FormatDate(got[11]))
	}
}

func TestGenerateMonthlySkipsShortMonths(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternMonthly,
		DayOfMonth:  intPtr(31),
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 3,
	})

	assertDates(t, got, "2024-01-31", "2024-03-31", "2024-05-31")
}

func TestGenerateCustomEveryThreeWeeks(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternCustom,
		Frequency:   3,
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 3,
	})

	assertDates(t, got, "2024-01-01", "2024-01-22", "2024-02-12")
}

func TestGenerateCustomZeroFrequencyActsWeekly(t *testing.T) {
	got := Generate(Rule{
		Pattern:     PatternCustom,
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 2,
	})

	assertDates(t, got, "2024-01-01", "2024-01-08")
}

func TestGenerateStopsAtEndDate(t *testing.T) {
	end := date(t, "2024-01-20")
	got := Generate(Rule{
		Pattern:   PatternWeekly,
		DayOfWeek: weekday(time.Monday),
		StartDate: date(t, "2024-01-01"),
		EndDate:   &end,
	})

	assertDates(t, got, "2024-01-01", "2024-01-08", "2024-01-15")
}

func TestGenerateEndBeforeStartIsEmpty(t *testing.T) {
	end := date(t, "2023-12-01")
	got := Generate(Rule{
		Pattern:   PatternWeekly,
		StartDate: date(t, "2024-01-01"),
		EndDate:   &end,
	})
	if len(got) != 0 {
		t.Fatalf("expected no dates, got %v", got)
	}
}

func TestGenerateDefaultCap(t *testing.T) {
	got := Generate(Rule{
		Pattern:   PatternWeekly,
		StartDate: date(t, "2024-01-01"),
	})
	if len(got) != DefaultOccurrences {
		t.Fatalf("expected %d dates, got %d", DefaultOccurrences, len(got))
	}
}

func TestGenerateIsBounded(t *testing.T) {
	start := date(t, "2024-02-29")
	farEnd := date(t, "2030-01-01")
	rules := []Rule{
		{Pattern: PatternWeekly, StartDate: start},
		{Pattern: PatternWeekly, StartDate: start, DayOfWeek: weekday(time.Sunday), Occurrences: 60},
		{Pattern: PatternBiweekly, StartDate: start, DayOfWeek: weekday(time.Tuesday), EndDate: &farEnd},
		{Pattern: PatternMonthly, StartDate: start, Occurrences: 5},
		{Pattern: PatternMonthly, StartDate: start, DayOfMonth: intPtr(1)},
		{Pattern: PatternCustom, StartDate: start, Frequency: 4},
		{Pattern: PatternCustom, StartDate: start, Frequency: 2, Occurrences: 1},
	}

	for _, rule := range rules {
		got := Generate(rule)
		if len(got) > rule.Cap() {
			t.Fatalf("%s: %d dates exceed cap %d", rule.Pattern, len(got), rule.Cap())
		}
		end := rule.WindowEnd()
		for i, d := range got {
			if d.Before(start) || d.After(end) {
				t.Fatalf("%s: date %s outside [%s, %s]", rule.Pattern, FormatDate(d), FormatDate(start), FormatDate(end))
			}
			if i > 0 && !d.After(got[i-1]) {
				t.Fatalf("%s: dates not strictly ascending at %d", rule.Pattern, i)
			}
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	rule := Rule{Pattern: PatternBiweekly, DayOfWeek: weekday(time.Thursday), StartDate: date(t, "2024-03-10")}
	a, b := Generate(rule), Generate(rule)
	if len(a) != len(b) {
		t.Fatalf("expected equal lengths, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("date[%d] differs between runs", i)
		}
	}
}

func TestInitialDatesCapsAtBatch(t *testing.T) {
	rule := Rule{
		Pattern:     PatternWeekly,
		DayOfWeek:   weekday(time.Monday),
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 10,
	}
	assertDates(t, InitialDates(rule), "2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22")

	rule.Occurrences = 2
	assertDates(t, InitialDates(rule), "2024-01-01", "2024-01-08")
}

func TestContinue(t *testing.T) {
	rule := Rule{
		Pattern:     PatternWeekly,
		DayOfWeek:   weekday(time.Monday),
		StartDate:   date(t, "2024-01-01"),
		Occurrences: 10,
	}

	got := Continue(rule, 4, date(t, "2024-01-22"), date(t, "2024-02-20"))
	assertDates(t, got, "2024-01-29", "2024-02-05", "2024-02-12", "2024-02-19")

	got = Continue(rule, 4, date(t, "2024-01-22"), date(t, "2024-12-31"))
	if len(got) != 6 {
		t.Fatalf("expected remaining 6 occurrences, got %d", len(got))
	}

	if got := Continue(rule, 10, date(t, "2024-03-04"), date(t, "2024-12-31")); len(got) != 0 {
		t.Fatalf("expected nothing after cap reached, got %v", got)
	}
}

func TestParsePattern(t *testing.T) {
	if p, err := ParsePattern("biweekly"); err != nil || p != PatternBiweekly {
		t.Fatalf("expected BIWEEKLY, got %q, %v", p, err)
	}
	if _, err := ParsePattern("DAILY"); err != ErrInvalidPattern {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestValidTime(t *testing.T) {
	cases := map[string]bool{
		"09:30": true,
		"23:59": true,
		"00:00": true,
		"24:00": false,
		"9:30":  false,
		"09:60": false,
		"0930":  false,
	}
	for in, want := range cases {
		if got := ValidTime(in); got != want {
			t.Fatalf("ValidTime(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDateAcceptsTimestamp(t *testing.T) {
	d, err := ParseDate("2024-01-01T15:04:05Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if FormatDate(d) != "2024-01-01" || d.Hour() != 0 {
		t.Fatalf("expected midnight 2024-01-01, got %v", d)
	}
	if _, err := ParseDate("01/02/2024"); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
