package intent

import (
	"strconv"
	"strings"
	"time"

	"finchat/internal/core"
)

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseTimeRange extracts a calendar range from the question tokens,
// resolved against the caller-supplied reference time. The resolver never
// consults the wall clock itself.
func parseTimeRange(tokens []string, now time.Time) (core.TimeRange, bool) {
	day := startOfDay(now)
	joined := " " + strings.Join(tokens, " ") + " "

	switch {
	case strings.Contains(joined, " today "):
		return core.NewTimeRange(day, day.AddDate(0, 0, 1)), true
	case strings.Contains(joined, " yesterday "):
		return core.NewTimeRange(day.AddDate(0, 0, -1), day), true
	case strings.Contains(joined, " this week "):
		monday := startOfWeek(day)
		return core.NewTimeRange(monday, monday.AddDate(0, 0, 7)), true
	case strings.Contains(joined, " last week "):
		monday := startOfWeek(day)
		return core.NewTimeRange(monday.AddDate(0, 0, -7), monday), true
	case strings.Contains(joined, " this month "):
		first := startOfMonth(day)
		return core.NewTimeRange(first, first.AddDate(0, 1, 0)), true
	case strings.Contains(joined, " last month "):
		first := startOfMonth(day)
		return core.NewTimeRange(first.AddDate(0, -1, 0), first), true
	case strings.Contains(joined, " this year "):
		first := startOfYear(day)
		return core.NewTimeRange(first, first.AddDate(1, 0, 0)), true
	case strings.Contains(joined, " last year "):
		first := startOfYear(day)
		return core.NewTimeRange(first.AddDate(-1, 0, 0), first), true
	}

	// "last N days|weeks|months"
	if r, ok := parseLastN(tokens, day); ok {
		return r, true
	}

	// "march 2024", bare month name, or bare year
	return parseCalendarRef(tokens, day)
}

func parseLastN(tokens []string, day time.Time) (core.TimeRange, bool) {
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i] != "last" && tokens[i] != "past" {
			continue
		}
		n, err := strconv.Atoi(tokens[i+1])
		if err != nil || n <= 0 || n > 1000 {
			continue
		}
		end := day.AddDate(0, 0, 1) // include today
		switch strings.TrimSuffix(tokens[i+2], "s") {
		case "day":
			return core.NewTimeRange(end.AddDate(0, 0, -n), end), true
		case "week":
			return core.NewTimeRange(end.AddDate(0, 0, -n*7), end), true
		case "month":
			return core.NewTimeRange(end.AddDate(0, -n, 0), end), true
		case "year":
			return core.NewTimeRange(end.AddDate(-n, 0, 0), end), true
		}
	}
	return core.TimeRange{}, false
}

func parseCalendarRef(tokens []string, day time.Time) (core.TimeRange, bool) {
	for i, tok := range tokens {
		month, isMonth := monthNames[tok]
		if isMonth {
			year := 0
			if i+1 < len(tokens) {
				if y, ok := parseYear(tokens[i+1]); ok {
					year = y
				}
			}
			if year == 0 {
				// Bare month: most recent occurrence not in the future.
				year = day.Year()
				if month > day.Month() {
					year--
				}
			}
			first := time.Date(year, month, 1, 0, 0, 0, 0, day.Location())
			return core.NewTimeRange(first, first.AddDate(0, 1, 0)), true
		}
		if y, ok := parseYear(tok); ok {
			first := time.Date(y, time.January, 1, 0, 0, 0, 0, day.Location())
			return core.NewTimeRange(first, first.AddDate(1, 0, 0)), true
		}
	}
	return core.TimeRange{}, false
}

func parseYear(tok string) (int, bool) {
	if len(tok) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(tok)
	if err != nil || y < 1970 || y > 2100 {
		return 0, false
	}
	return y, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(day time.Time) time.Time {
	// Weeks start on Monday.
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return day.AddDate(0, 0, -(wd - 1))
}

func startOfMonth(day time.Time) time.Time {
	y, m, _ := day.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, day.Location())
}

func startOfYear(day time.Time) time.Time {
	return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
}
