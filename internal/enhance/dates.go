package enhance

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical hours for day-part words without explicit minutes.
const (
	hourMorning   = 9
	hourNoon      = 12
	hourAfternoon = 14
	hourEvening   = 19
	hourNight     = 21
)

// dayPart describes a time-of-day word: its canonical hour and whether
// it shifts a small clock hour into the second half of the day.
type dayPart struct {
	hour int
	pm   bool
}

// dayPartMarkers is ordered so longer markers match before substrings.
var dayPartMarkers = []struct {
	marker string
	part   dayPart
}{
	{"凌晨", dayPart{hour: 5, pm: false}},
	{"早上", dayPart{hour: hourMorning, pm: false}},
	{"上午", dayPart{hour: hourMorning, pm: false}},
	{"morning", dayPart{hour: hourMorning, pm: false}},
	{"中午", dayPart{hour: hourNoon, pm: false}},
	{"noon", dayPart{hour: hourNoon, pm: false}},
	{"下午", dayPart{hour: hourAfternoon, pm: true}},
	{"afternoon", dayPart{hour: hourAfternoon, pm: true}},
	{"傍晚", dayPart{hour: hourEvening, pm: true}},
	{"晚上", dayPart{hour: hourEvening, pm: true}},
	{"evening", dayPart{hour: hourEvening, pm: true}},
	{"深夜", dayPart{hour: hourNight, pm: true}},
	{"night", dayPart{hour: hourNight, pm: true}},
}

// allDayRe matches markers indicating a whole-day event.
var allDayRe = regexp.MustCompile(`全天|整天|休假|放假|all[ -]?day|day off|vacation|holiday`)

var (
	zhNextWeekdayRe = regexp.MustCompile(`下(?:個)?(?:週|周|星期|禮拜)([一二三四五六日天])`)
	enNextWeekdayRe = regexp.MustCompile(`(?i)next\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`)

	zhClockRe   = regexp.MustCompile(`([零一二兩三四五六七八九十]+|\d{1,2})點(半)?(?:([零一二三四五六七八九十]+|\d{1,2})分)?`)
	digitalRe   = regexp.MustCompile(`(\d{1,2})[:：](\d{2})`)
	enMeridemRe = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*([ap]m)\b`)
)

var zhWeekdays = map[string]time.Weekday{
	"一": time.Monday, "二": time.Tuesday, "三": time.Wednesday,
	"四": time.Thursday, "五": time.Friday, "六": time.Saturday,
	"日": time.Sunday, "天": time.Sunday,
}

var enWeekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

// ResolveSpan derives an absolute time window from relative date and
// time language in the transcript, resolved against now. Returns nil
// when the rules find no resolvable day or time: the pass never guesses.
func ResolveSpan(transcript string, now time.Time) *TimeSpan {
	day, dayFound := resolveDay(transcript, now)

	if allDayRe.MatchString(transcript) {
		if !dayFound {
			day = dayOf(now)
		}
		return &TimeSpan{Start: day, End: day.AddDate(0, 0, 1), AllDay: true}
	}

	hour, minute, clockFound := resolveClock(transcript)
	if !clockFound {
		if part, ok := findDayPart(transcript); ok && dayFound {
			hour, minute, clockFound = part.hour, 0, true
		}
	}

	if !clockFound {
		return nil
	}
	if !dayFound {
		day = dayOf(now)
	}

	start := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	return &TimeSpan{Start: start, End: start.Add(time.Hour)}
}

// resolveDay maps relative day words to a calendar date (midnight).
// Longer markers are checked first so 大後天 is not read as 後天.
func resolveDay(transcript string, now time.Time) (time.Time, bool) {
	base := dayOf(now)
	lower := strings.ToLower(transcript)

	switch {
	case strings.Contains(transcript, "大後天"):
		return base.AddDate(0, 0, 3), true
	case strings.Contains(transcript, "後天"):
		return base.AddDate(0, 0, 2), true
	case strings.Contains(lower, "day after tomorrow"):
		return base.AddDate(0, 0, 2), true
	case strings.Contains(transcript, "明天"):
		return base.AddDate(0, 0, 1), true
	case strings.Contains(lower, "tomorrow"):
		return base.AddDate(0, 0, 1), true
	case strings.Contains(transcript, "今天"):
		return base, true
	case strings.Contains(lower, "today"):
		return base, true
	}

	if m := zhNextWeekdayRe.FindStringSubmatch(transcript); m != nil {
		return nextWeekday(now, zhWeekdays[m[1]]), true
	}
	if m := enNextWeekdayRe.FindStringSubmatch(lower); m != nil {
		return nextWeekday(now, enWeekdays[m[1]]), true
	}

	return time.Time{}, false
}

// nextWeekday resolves "next <weekday>" to the named weekday of the
// following Monday-based week.
func nextWeekday(now time.Time, target time.Weekday) time.Time {
	iso := (int(now.Weekday()) + 6) % 7 // Monday = 0
	daysToMonday := 7 - iso
	targetISO := (int(target) + 6) % 7
	return dayOf(now).AddDate(0, 0, daysToMonday+targetISO)
}

// resolveClock extracts an explicit clock time, applying a pm shift when
// a second-half day-part word qualifies a small hour (下午兩點 → 14:00).
func resolveClock(transcript string) (hour, minute int, found bool) {
	part, hasPart := findDayPart(transcript)

	if m := enMeridemRe.FindStringSubmatch(transcript); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 12 || minute > 59 {
			return 0, 0, false
		}
		if strings.EqualFold(m[3], "pm") && hour < 12 {
			hour += 12
		}
		return hour, minute, true
	}

	if m := digitalRe.FindStringSubmatch(transcript); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour > 24 || minute > 59 {
			return 0, 0, false
		}
		if hasPart && part.pm && hour < 12 {
			hour += 12
		}
		return hour, minute, true
	}

	if m := zhClockRe.FindStringSubmatch(transcript); m != nil {
		h, ok := parseNumeral(m[1])
		if !ok || h > 24 {
			return 0, 0, false
		}
		hour = h
		switch {
		case m[2] == "半":
			minute = 30
		case m[3] != "":
			if mnt, ok := parseNumeral(m[3]); ok && mnt < 60 {
				minute = mnt
			}
		}
		if hasPart && part.pm && hour < 12 {
			hour += 12
		}
		return hour, minute, true
	}

	return 0, 0, false
}

func findDayPart(transcript string) (dayPart, bool) {
	lower := strings.ToLower(transcript)
	for _, dp := range dayPartMarkers {
		if strings.Contains(lower, dp.marker) {
			return dp.part, true
		}
	}
	return dayPart{}, false
}

var zhDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '兩': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseNumeral reads an arabic or Chinese numeral in [0, 99].
// Chinese forms handled: X, 十, 十X, X十, X十Y.
func parseNumeral(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	runes := []rune(s)
	switch len(runes) {
	case 1:
		if runes[0] == '十' {
			return 10, true
		}
		if d, ok := zhDigits[runes[0]]; ok {
			return d, true
		}
	case 2:
		if runes[0] == '十' {
			if d, ok := zhDigits[runes[1]]; ok {
				return 10 + d, true
			}
		}
		if runes[1] == '十' {
			if d, ok := zhDigits[runes[0]]; ok {
				return d * 10, true
			}
		}
	case 3:
		if runes[1] == '十' {
			tens, okT := zhDigits[runes[0]]
			ones, okO := zhDigits[runes[2]]
			if okT && okO {
				return tens*10 + ones, true
			}
		}
	}
	return 0, false
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
