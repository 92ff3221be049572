package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"a couple": 2, "couple": 2,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reSlashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	reMonthDay  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	reDayMonth  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
	reAmPm      = regexp.MustCompile(`(?i)\b(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)`)
	reClock     = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	reDigits    = regexp.MustCompile(`\d`)
)

// normalizeSlotValue converts a raw value into the canonical form of its slot
// type. ok is false when the value cannot be interpreted.
func normalizeSlotValue(def slot.Definition, raw string, now time.Time) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	switch def.Type {
	case slot.TypeInteger:
		n, ok := parseCount(v)
		if !ok || n < 1 || n > 100 {
			return "", false
		}
		return strconv.Itoa(n), true
	case slot.TypeDate:
		d, ok := parseDate(v, now)
		if !ok {
			return "", false
		}
		return d.Format(time.DateOnly), true
	case slot.TypeTime:
		return parseClock(v)
	case slot.TypePhone:
		return normalizePhone(v)
	}
	if def.Name == slot.DeliveryMethod {
		return parseDeliveryMethod(v)
	}
	return v, true
}

func parseCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	for _, f := range strings.Fields(s) {
		if n, err := strconv.Atoi(f); err == nil {
			return n, true
		}
		if n, ok := numberWords[f]; ok {
			return n, true
		}
	}
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	return 0, false
}

// parseDate understands relative days, weekdays, ISO dates, M/D and month-name dates.
// Dates without a year roll forward to the next occurrence.
func parseDate(s string, now time.Time) (time.Time, bool) {
	lower := " " + strings.ToLower(s) + " "
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(lower, "day after tomorrow"):
		return today.AddDate(0, 0, 2), true
	case containsWord(lower, "tomorrow") || containsWord(lower, "tmrw"):
		return today.AddDate(0, 0, 1), true
	case containsWord(lower, "today") || containsWord(lower, "tonight") || containsWord(lower, "now"):
		return today, true
	}

	if m := reISODate.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return validDate(y, time.Month(mo), d, now.Location())
	}
	if m := reSlashDate.FindStringSubmatch(lower); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			if y < 100 {
				y += 2000
			}
			return validDate(y, time.Month(mo), d, now.Location())
		}
		return nextOccurrence(today, time.Month(mo), d)
	}
	if m := reMonthDay.FindStringSubmatch(lower); m != nil {
		d, _ := strconv.Atoi(m[2])
		return nextOccurrence(today, months[m[1][:3]], d)
	}
	if m := reDayMonth.FindStringSubmatch(lower); m != nil {
		d, _ := strconv.Atoi(m[1])
		return nextOccurrence(today, months[m[2][:3]], d)
	}

	for name, wd := range weekdays {
		if containsWord(lower, name) {
			delta := (int(wd) - int(today.Weekday()) + 7) % 7
			if delta == 0 {
				delta = 7
			}
			return today.AddDate(0, 0, delta), true
		}
	}
	return time.Time{}, false
}

func validDate(y int, m time.Month, d int, loc *time.Location) (time.Time, bool) {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func nextOccurrence(today time.Time, m time.Month, d int) (time.Time, bool) {
	t, ok := validDate(today.Year(), m, d, today.Location())
	if !ok {
		return time.Time{}, false
	}
	if t.Before(today) {
		return validDate(today.Year()+1, m, d, today.Location())
	}
	return t, true
}

// parseClock returns HH:MM in 24h form.
func parseClock(s string) (string, bool) {
	lower := strings.ToLower(s)
	switch {
	case containsWord(lower, "noon") || containsWord(lower, "midday"):
		return "12:00", true
	case containsWord(lower, "midnight"):
		return "00:00", true
	}
	if m := reAmPm.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins := 0
		if m[2] != "" {
			mins, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || mins > 59 {
			return "", false
		}
		pm := strings.HasPrefix(m[3], "p")
		switch {
		case pm && h != 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
		return fmt.Sprintf("%02d:%02d", h, mins), true
	}
	if m := reClock.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%02d:%02d", h, mins), true
	}
	return "", false
}

// normalizePhone keeps the caller's formatting but requires at least seven digits.
func normalizePhone(s string) (string, bool) {
	if len(reDigits.FindAllString(s, -1)) < 7 {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func parseDeliveryMethod(s string) (string, bool) {
	lower := " " + strings.ToLower(s) + " "
	switch {
	case containsWord(lower, "deliver") || containsWord(lower, "delivery") || containsWord(lower, "delivered"):
		return "delivery", true
	case containsWord(lower, "pickup") || containsWord(lower, "pick up") || containsWord(lower, "collect") ||
		containsWord(lower, "takeaway") || containsWord(lower, "take away") || containsWord(lower, "pick it up"):
		return "pickup", true
	}
	return "", false
}
