package datepref

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const weekdayPattern = `(monday|tuesday|tues|wednesday|weds|thursday|thurs|friday|saturday|sunday)\b`

const monthPattern = `(january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sept|sep|october|oct|november|nov|december|dec)\b`

var (
	reDayAfterTomorrow = regexp.MustCompile(`\bday after tomorrow\b`)
	reToday            = regexp.MustCompile(`\btoday\b`)
	reTomorrow         = regexp.MustCompile(`\b(?:tomorrow|tmrw)\b`)
	reNextWeekDay      = regexp.MustCompile(`\bnext\s+week(?:\s+on)?\s+` + weekdayPattern)
	reDayNextWeek      = regexp.MustCompile(`\b` + weekdayPattern + `\s+next\s+week\b`)
	reNextDay          = regexp.MustCompile(`\bnext\s+` + weekdayPattern)
	reThisDay          = regexp.MustCompile(`\bthis\s+(?:coming\s+)?` + weekdayPattern)
	reBareDay          = regexp.MustCompile(`\b` + weekdayPattern)
	reMonthDay         = regexp.MustCompile(`\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(\d{4})\b)?`)
	reDayOfMonth       = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthPattern + `(?:,?\s*(\d{4})\b)?`)
	reISODate          = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reSlashDate        = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)

	reClock    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*((?:am|pm)\b|a\.m\.?|p\.m\.?)?`)
	reMeridiem = regexp.MustCompile(`\b(\d{1,2})\s*((?:am|pm)\b|a\.m\.?|p\.m\.?)`)
	reOClock   = regexp.MustCompile(`\b(\d{1,2})\s*o'?\s?clock\b`)
	reNoon     = regexp.MustCompile(`\b(?:noon|midday)\b`)
	reContext  = regexp.MustCompile(`\b(?:at|around|about|by|after|before|from|morning|afternoon|evening)\s+(?:the\s+)?(\d{1,2})\b`)
	reLateDay  = regexp.MustCompile(`\b(?:afternoon|evening|tonight)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "weds": time.Wednesday, "thursday": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January, "february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March, "april": time.April, "apr": time.April, "may": time.May,
	"june": time.June, "jun": time.June, "july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August, "september": time.September, "sept": time.September,
	"sep": time.September, "october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November, "december": time.December, "dec": time.December,
}

// Parse extracts a date and a time-of-day preference from text. Relative phrases
// resolve against ref's calendar date in ref's own location. Unrecognized
// dimensions are left nil.
func Parse(text string, ref time.Time) Preference {
	lower := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	today := DateOf(ref)

	var pref Preference
	date, span, ok := parseDate(lower, today)
	if ok {
		pref.Date = &date
		// keep "10/15" or "21" out of the time rules
		lower = lower[:span[0]] + strings.Repeat(" ", span[1]-span[0]) + lower[span[1]:]
	}
	if tod, ok := parseTime(lower); ok {
		pref.Time = &tod
	}
	return pref
}

func parseDate(s string, today Date) (Date, [2]int, bool) {
	if loc := reDayAfterTomorrow.FindStringIndex(s); loc != nil {
		return today.AddDays(2), [2]int{loc[0], loc[1]}, true
	}
	if loc := reToday.FindStringIndex(s); loc != nil {
		return today, [2]int{loc[0], loc[1]}, true
	}
	if loc := reTomorrow.FindStringIndex(s); loc != nil {
		return today.AddDays(1), [2]int{loc[0], loc[1]}, true
	}

	weekdayRules := []struct {
		re      *regexp.Regexp
		resolve func(from, target time.Weekday) int
	}{
		{reNextWeekDay, daysUntilNext},
		{reDayNextWeek, daysUntilNext},
		{reNextDay, daysUntilNext},
		{reThisDay, daysUntilThis},
		{reBareDay, daysUntilComing},
	}
	for _, rule := range weekdayRules {
		m := rule.re.FindStringSubmatchIndex(s)
		if m == nil {
			continue
		}
		target := weekdays[s[m[2]:m[3]]]
		return today.AddDays(rule.resolve(today.Weekday(), target)), [2]int{m[0], m[1]}, true
	}

	if m := reMonthDay.FindStringSubmatchIndex(s); m != nil {
		if d, ok := calendarDate(today, group(s, m, 3), months[group(s, m, 1)], group(s, m, 2)); ok {
			return d, [2]int{m[0], m[1]}, true
		}
	}
	if m := reDayOfMonth.FindStringSubmatchIndex(s); m != nil {
		if d, ok := calendarDate(today, group(s, m, 3), months[group(s, m, 2)], group(s, m, 1)); ok {
			return d, [2]int{m[0], m[1]}, true
		}
	}

	if m := reISODate.FindStringSubmatchIndex(s); m != nil {
		month, _ := strconv.Atoi(group(s, m, 2))
		if d, ok := calendarDate(today, group(s, m, 1), time.Month(month), group(s, m, 3)); ok {
			return d, [2]int{m[0], m[1]}, true
		}
	}
	if m := reSlashDate.FindStringSubmatchIndex(s); m != nil {
		month, _ := strconv.Atoi(group(s, m, 1))
		if d, ok := calendarDate(today, group(s, m, 3), time.Month(month), group(s, m, 2)); ok {
			return d, [2]int{m[0], m[1]}, true
		}
	}
	return Date{}, [2]int{}, false
}

// daysUntilThis counts forward to the nearest target, today included.
func daysUntilThis(from, target time.Weekday) int {
	return (int(target) - int(from) + 7) % 7
}

// daysUntilComing is like daysUntilThis but rolls today's weekday to next week.
func daysUntilComing(from, target time.Weekday) int {
	if n := daysUntilThis(from, target); n > 0 {
		return n
	}
	return 7
}

// daysUntilNext always lands beyond the coming seven days.
func daysUntilNext(from, target time.Weekday) int {
	return daysUntilComing(from, target) + 7
}

// calendarDate validates the parts and, when no year is given, picks the next
// occurrence on or after today.
func calendarDate(today Date, yearText string, month time.Month, dayText string) (Date, bool) {
	day, err := strconv.Atoi(dayText)
	if err != nil || month < time.January || month > time.December || day < 1 || day > 31 {
		return Date{}, false
	}
	year := today.Year
	explicitYear := yearText != ""
	if explicitYear {
		year, err = strconv.Atoi(yearText)
		if err != nil {
			return Date{}, false
		}
		if year < 100 {
			year += 2000
		}
	}
	d := Date{Year: year, Month: month, Day: day}
	if DateOf(d.In(time.UTC)) != d {
		return Date{}, false
	}
	if !explicitYear && d.Before(today) {
		d.Year++
		if DateOf(d.In(time.UTC)) != d {
			return Date{}, false
		}
	}
	return d, true
}

func parseTime(s string) (TimeOfDay, bool) {
	lateDay := reLateDay.MatchString(s)

	if m := reClock.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if minute <= 59 {
			if m[3] != "" {
				if h, ok := applyMeridiem(hour, m[3]); ok {
					return TimeOfDay{Hour: h, Minute: minute}, true
				}
			} else if hour <= 23 {
				return TimeOfDay{Hour: businessHour(hour, lateDay), Minute: minute}, true
			}
		}
	}
	if m := reMeridiem.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if h, ok := applyMeridiem(hour, m[2]); ok {
			return TimeOfDay{Hour: h}, true
		}
	}
	if m := reOClock.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour >= 1 && hour <= 12 {
			return TimeOfDay{Hour: businessHour(hour, lateDay)}, true
		}
	}
	if reNoon.MatchString(s) {
		return TimeOfDay{Hour: 12}, true
	}
	for _, m := range reContext.FindAllStringSubmatch(s, -1) {
		hour, _ := strconv.Atoi(m[1])
		if hour >= 1 && hour <= 12 {
			return TimeOfDay{Hour: businessHour(hour, lateDay)}, true
		}
	}
	return TimeOfDay{}, false
}

func applyMeridiem(hour int, meridiem string) (int, bool) {
	if hour < 1 || hour > 12 {
		return 0, false
	}
	pm := strings.HasPrefix(meridiem, "p")
	switch {
	case pm && hour != 12:
		return hour + 12, true
	case !pm && hour == 12:
		return 0, true
	default:
		return hour, true
	}
}

// businessHour reads an hour given without am/pm. Clinic hours make "at 3" an
// afternoon appointment.
func businessHour(hour int, lateDay bool) int {
	if hour >= 12 {
		return hour
	}
	if lateDay || (hour >= 1 && hour <= 6) {
		return hour + 12
	}
	return hour
}

func group(s string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}
