package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result holds whatever the parser could extract. Date is midnight of
// the requested calendar day in the business timezone; Time is the raw
// preference string ("2 PM", "morning", ...).
type Result struct {
	Date *time.Time
	Time string
}

var (
	clockRe     = regexp.MustCompile(`(\d{1,2})\s*(am|pm)`)
	monthDayRe  = regexp.MustCompile(`(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\s+(\d{1,2})(?:,?\s+(\d{4}))?`)
	dayMonthRe  = regexp.MustCompile(`(\d{1,2})\s+(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)(?:\s+(\d{4}))?`)
	dayBucketRe = regexp.MustCompile(`\b(morning|afternoon|evening)\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// Parse extracts a date and/or time preference from free text.
// Handles "today"/"tomorrow" with an optional clock time, month-name
// forms like "Jan 6 2pm" or "6 January 2026", and falls back to the
// bare morning/afternoon/evening buckets. Returns ok=false when
// nothing was recognized.
func Parse(input string, now time.Time, loc *time.Location) (Result, bool) {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return Result{}, false
	}

	var res Result

	localNow := now.In(loc)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)

	switch {
	case strings.Contains(lower, "tomorrow"):
		d := today.AddDate(0, 0, 1)
		res.Date = &d
	case strings.Contains(lower, "today"):
		d := today
		res.Date = &d
	default:
		if m := monthDayRe.FindStringSubmatch(lower); m != nil {
			res.Date = buildDate(m[1], m[2], m[3], localNow, loc)
		} else if m := dayMonthRe.FindStringSubmatch(lower); m != nil {
			res.Date = buildDate(m[2], m[1], m[3], localNow, loc)
		}
	}

	if m := clockRe.FindStringSubmatch(lower); m != nil {
		res.Time = m[1] + " " + strings.ToUpper(m[2])
	} else if m := dayBucketRe.FindStringSubmatch(lower); m != nil {
		res.Time = m[1]
	}

	if res.Date == nil && res.Time == "" {
		return Result{}, false
	}
	return res, true
}

func buildDate(monthStr, dayStr, yearStr string, now time.Time, loc *time.Location) *time.Time {
	month, ok := monthsByName[monthStr]
	if !ok {
		return nil
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return nil
	}

	year := now.Year()
	if yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil {
			year = y
		}
	}

	d := time.Date(year, month, day, 0, 0, 0, 0, loc)

	// A bare "Jan 6" in December means next January.
	if yearStr == "" && d.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)) {
		d = d.AddDate(1, 0, 0)
	}

	return &d
}

// Hour converts a clock preference like "2 PM" to a 24h hour.
// Returns -1 for bucket preferences and unparseable input.
func Hour(pref string) int {
	m := clockRe.FindStringSubmatch(strings.ToLower(pref))
	if m == nil {
		return -1
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h < 1 || h > 12 {
		return -1
	}
	if m[2] == "pm" && h != 12 {
		h += 12
	}
	if m[2] == "am" && h == 12 {
		h = 0
	}
	return h
}
