// Package dateparse implements the Date Parser: a total function turning
// the wildly heterogeneous date strings scraped off manga sites (epoch
// millis, "2 minutes ago", "Jan 30 2022", ISO 8601, ...) into a UTC instant.
// It never errors and never panics; every input either parses or yields
// the zero time and false.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	digitsOnlyPattern  = regexp.MustCompile(`^\d+$`)
	hasDigitsPattern   = regexp.MustCompile(`\d`)
	nonLetterPattern   = regexp.MustCompile(`\W`)
	cleanDatePattern   = regexp.MustCompile(`[^\w\d:.+\-]+`)
	collapseDashes     = regexp.MustCompile(`-{2,}`)
	ordinalSuffix      = regexp.MustCompile(`(\d)(nd|st|rd|th)`)
	relativeDatePattern = regexp.MustCompile(`(\d+)\s*(\w\w?)`)
)

// currentDateSubstrings are words that, found anywhere in an otherwise
// all-text date string, mean "right now".
var currentDateSubstrings = []string{"now", "latest", "hot", "today", "current", "while"}

// dateLayouts is the fixed list of 18 absolute-date formats tried in order,
// translated from chrono's strftime patterns into Go reference-time
// layouts. Go's time.Parse zero-fills components missing from the layout
// (e.g. a yearless layout parses to year 0, a date-only layout parses to
// midnight), which gives us the "accept date-only as midnight" behavior
// for free.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"January-02-06-15:04",
	"January-02-2006-15:04",
	"Jan-02-06-15:04:05",
	"January-02-06-15:04:05",
	"Jan-02-15:04",
	"02-January-15:04",
	"02-Jan-15:04",
	"January-02-2006",
	"Jan-02-2006",
	"Jan-02-06",
	"02-January-2006",
	"2006.01.02",
	"02-01-2006",
}

// Clock is injectable so tests can pin "now"; defaults to the real clock.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Parse is the total date parser described above, using the real clock.
func Parse(raw string) (time.Time, bool) {
	return ParseAt(raw, systemClock)
}

// ParseAt parses raw using now() as the reference time for relative forms.
func ParseAt(raw string, now Clock) (time.Time, bool) {
	if now == nil {
		now = systemClock
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}

	if digitsOnlyPattern.MatchString(trimmed) {
		millis, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(millis).UTC(), true
	}

	reference := now()

	if !hasDigitsPattern.MatchString(trimmed) {
		return parseTextOnly(trimmed, reference)
	}

	if len(hasDigitsPattern.FindAllString(trimmed, -1)) > 1 {
		if parsed, ok := parseAbsolute(trimmed); ok {
			return parsed, true
		}
	}

	if parsed, ok := parseRelative(trimmed, reference); ok {
		return parsed, true
	}

	return time.Time{}, false
}

func parseTextOnly(raw string, now time.Time) (time.Time, bool) {
	cleaned := strings.ToLower(nonLetterPattern.ReplaceAllString(raw, ""))

	for _, word := range currentDateSubstrings {
		if strings.Contains(cleaned, word) {
			return now, true
		}
	}
	if strings.Contains(cleaned, "yesterday") {
		return now.AddDate(0, 0, -1), true
	}
	if strings.Contains(cleaned, "week") {
		return now.AddDate(0, 0, -7), true
	}
	if strings.Contains(cleaned, "month") {
		return now.AddDate(0, -1, 0), true
	}
	if strings.Contains(cleaned, "year") {
		return now.AddDate(0, 0, -365), true
	}
	return time.Time{}, false
}

func parseAbsolute(raw string) (time.Time, bool) {
	cleaned := cleanDatePattern.ReplaceAllString(raw, "-")
	cleaned = collapseDashes.ReplaceAllString(cleaned, "-")
	cleaned = ordinalSuffix.ReplaceAllString(cleaned, "$1")
	cleaned = titleCaseMonths(cleaned)

	// Go layouts are stricter than strftime: "January" only matches full
	// month names and "02" needs two digits. Each layout is also tried with
	// the other month-name form and with a one-or-two-digit day, so
	// "30 Jan 2022" and "Jan 1st 2022" parse.
	for _, layout := range dateLayouts {
		monthSwapped := strings.Replace(layout, "January", "Jan", 1)
		if monthSwapped == layout {
			monthSwapped = strings.Replace(layout, "Jan", "January", 1)
		}
		for _, variant := range []string{layout, monthSwapped} {
			for _, candidate := range []string{variant, strings.Replace(variant, "02", "2", 1)} {
				if parsed, err := time.Parse(candidate, cleaned); err == nil {
					return parsed.UTC(), true
				}
			}
		}
	}
	return time.Time{}, false
}

func parseRelative(raw string, now time.Time) (time.Time, bool) {
	match := relativeDatePattern.FindStringSubmatch(strings.ToLower(raw))
	if match == nil {
		return time.Time{}, false
	}

	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		amount = 1
	}
	unit := match[2]

	if unit == "mi" {
		return now.Add(-time.Duration(amount) * time.Minute), true
	}

	switch unit[0] {
	case 's':
		return now.Add(-time.Duration(amount) * time.Second), true
	case 'h':
		return now.Add(-time.Duration(amount) * time.Hour), true
	case 'd':
		return now.AddDate(0, 0, -int(amount)), true
	case 'w':
		return now.AddDate(0, 0, -7*int(amount)), true
	case 'm':
		return now.AddDate(0, -int(amount), 0), true
	case 'y':
		return now.AddDate(0, 0, -365*int(amount)), true
	default:
		return time.Time{}, false
	}
}

// titleCaseMonths upper-cases the first letter of each alphabetic run so
// month names scraped in arbitrary case ("january", "JAN") still match the
// Title-case month layouts above.
func titleCaseMonths(raw string) string {
	runes := []rune(raw)
	atWordStart := true
	for i, r := range runes {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			if atWordStart {
				runes[i] = []rune(strings.ToUpper(string(r)))[0]
			} else {
				runes[i] = []rune(strings.ToLower(string(r)))[0]
			}
			atWordStart = false
		default:
			atWordStart = true
		}
	}
	return string(runes)
}
