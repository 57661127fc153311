package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// weekdayTokens are recognized by the date cascade but intentionally not
// resolved to a calendar date: the keyword vocabulary (today / tomorrow /
// next week) and explicit numeric dates are the supported forms. The gap
// is surfaced as an absent date, which the intent router defaults.
var weekdayTokens = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"mon": true, "tue": true, "wed": true, "thu": true, "thurs": true,
	"fri": true, "sat": true, "sun": true,
}

// NormalizeDate maps a raw captured date expression to an ISO-8601
// calendar date, resolved against now. Returns ok=false when the
// expression is unsupported or not a valid calendar date; a partially
// formed date string is never produced.
//
// M/D without a year is completed with the current year and rolled
// forward to next year if that month/day has already passed, so it always
// resolves to today or later.
func NormalizeDate(raw string, now time.Time) (string, bool) {
	s := Normalize(raw)
	if s == "" {
		return "", false
	}

	switch s {
	case "today":
		return now.Format("2006-01-02"), true
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format("2006-01-02"), true
	case "next week":
		return now.AddDate(0, 0, 7).Format("2006-01-02"), true
	}
	if weekdayTokens[s] {
		return "", false
	}

	if strings.Contains(s, "/") {
		return normalizeSlashDate(s, now)
	}

	// YYYY-MM-DD is validated and passed through unchanged.
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02"), true
	}
	return "", false
}

func normalizeSlashDate(s string, now time.Time) (string, bool) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return "", false
		}
		year := now.Year()
		if month < int(now.Month()) || (month == int(now.Month()) && day < now.Day()) {
			year++
		}
		if !validCalendarDate(year, month, day) {
			return "", false
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
	case 3:
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		year, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return "", false
		}
		if !validCalendarDate(year, month, day) {
			return "", false
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
	}
	return "", false
}

// validCalendarDate reports whether year/month/day is a real calendar
// date. time.Date normalizes overflow (2/30 becomes 3/2); a changed
// component means the input was invalid.
func validCalendarDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// DefaultTime is the fallback for absent or unparseable time expressions.
const DefaultTime = "09:00"

// daypartTimes maps coarse time-of-day keywords to fixed clock times.
var daypartTimes = map[string]string{
	"morning":   "09:00",
	"afternoon": "14:00",
	"evening":   "18:00",
	"night":     "20:00",
}

var (
	clockRE    = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(am|pm)?$`)
	bareHourRE = regexp.MustCompile(`^(\d{1,2})\s*(am|pm)$`)
)

// NormalizeTime maps a raw captured time expression to a 24-hour "HH:MM"
// string in [00:00, 23:59]. Absent or unparseable input yields
// DefaultTime, never an empty string.
func NormalizeTime(raw string) string {
	s := Normalize(raw)
	if s == "" {
		return DefaultTime
	}

	if fixed, ok := daypartTimes[s]; ok {
		return fixed
	}

	if m := clockRE.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		if minutes > 59 {
			return DefaultTime
		}
		if m[3] != "" {
			var ok bool
			hours, ok = to24Hour(hours, m[3])
			if !ok {
				return DefaultTime
			}
		} else if hours > 23 {
			return DefaultTime
		}
		return fmt.Sprintf("%02d:%02d", hours, minutes)
	}

	if m := bareHourRE.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		hours, ok := to24Hour(hours, m[2])
		if !ok {
			return DefaultTime
		}
		return fmt.Sprintf("%02d:00", hours)
	}

	return DefaultTime
}

// to24Hour converts a 12-hour clock hour with am/pm marker, applying the
// standard edge cases: 12am is 00, 12pm is 12.
func to24Hour(hours int, marker string) (int, bool) {
	if hours < 1 || hours > 12 {
		return 0, false
	}
	if marker == "pm" && hours != 12 {
		hours += 12
	} else if marker == "am" && hours == 12 {
		hours = 0
	}
	return hours, true
}
