// Package calendar resolves the relative and explicit date phrases users write
// in English or Malay into concrete calendar ranges.
package calendar

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) String() string {
	if r.Start.Equal(r.End) {
		return r.Start.Format(DateLayout)
	}
	return r.Start.Format(DateLayout) + " to " + r.End.Format(DateLayout)
}

// Period is a named relative range and the phrases that refer to it.
type Period struct {
	Key     string
	Phrases []string
	Range   Range
}

// Day truncates t to its calendar date in t's location, returned as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Periods returns the relative periods anchored on today, in a fixed order.
func Periods(today time.Time) []Period {
	day := Day(today)
	weekday := int(day.Weekday())

	var weekend Range
	switch day.Weekday() {
	case time.Saturday:
		weekend = Range{Start: day, End: day.AddDate(0, 0, 1)}
	case time.Sunday:
		weekend = Range{Start: day, End: day}
	default:
		saturday := day.AddDate(0, 0, 6-weekday)
		weekend = Range{Start: saturday, End: saturday.AddDate(0, 0, 1)}
	}

	daysToMonday := (8 - weekday) % 7
	if daysToMonday == 0 {
		daysToMonday = 7
	}
	nextMonday := day.AddDate(0, 0, daysToMonday)
	monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonthStart := monthStart.AddDate(0, 1, 0)

	return []Period{
		{Key: "today", Phrases: []string{"today", "hari ini", "harini"}, Range: Range{Start: day, End: day}},
		{Key: "tomorrow", Phrases: []string{"tomorrow", "esok"}, Range: Range{Start: day.AddDate(0, 0, 1), End: day.AddDate(0, 0, 1)}},
		{Key: "day_after_tomorrow", Phrases: []string{"day after tomorrow", "lusa"}, Range: Range{Start: day.AddDate(0, 0, 2), End: day.AddDate(0, 0, 2)}},
		{Key: "this_weekend", Phrases: []string{"this weekend", "hujung minggu ini", "hujung minggu"}, Range: weekend},
		{Key: "this_week", Phrases: []string{"this week", "minggu ini"}, Range: Range{Start: day, End: day.AddDate(0, 0, 7)}},
		{Key: "next_week", Phrases: []string{"next week", "minggu depan", "minggu hadapan"}, Range: Range{Start: nextMonday, End: nextMonday.AddDate(0, 0, 6)}},
		{Key: "this_month", Phrases: []string{"this month", "bulan ini"}, Range: Range{Start: monthStart, End: nextMonthStart.AddDate(0, 0, -1)}},
		{Key: "next_month", Phrases: []string{"next month", "bulan depan", "bulan hadapan"}, Range: Range{Start: nextMonthStart, End: nextMonthStart.AddDate(0, 1, -1)}},
		{Key: "this_year", Phrases: []string{"this year", "tahun ini"}, Range: Range{Start: time.Date(day.Year(), 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(day.Year(), 12, 31, 0, 0, 0, 0, time.UTC)}},
	}
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January, "januari": time.January,
	"february": time.February, "feb": time.February, "februari": time.February,
	"march": time.March, "mar": time.March, "mac": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May, "mei": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July, "julai": time.July,
	"august": time.August, "aug": time.August, "ogos": time.August, "ogo": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October, "oktober": time.October, "okt": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December, "disember": time.December, "dis": time.December,
}

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	dayMonthPattern  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\s+(\d{4})\b`)
	monthYearPattern = regexp.MustCompile(`(?i)\b([a-z]+)\s+(\d{4})\b`)
)

type phrasePattern struct {
	key     string
	pattern *regexp.Regexp
}

// phrasePatterns holds one pattern per relative phrase, longest phrase first
// so "hujung minggu ini" is not also read as "minggu ini".
var phrasePatterns = compilePhrasePatterns()

func compilePhrasePatterns() []phrasePattern {
	type phrase struct{ key, text string }
	var phrases []phrase
	for _, period := range Periods(time.Time{}) {
		for _, text := range period.Phrases {
			phrases = append(phrases, phrase{key: period.Key, text: text})
		}
	}
	sort.SliceStable(phrases, func(i, j int) bool { return len(phrases[i].text) > len(phrases[j].text) })

	out := make([]phrasePattern, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, phrasePattern{
			key:     p.key,
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(p.text) + `\b`),
		})
	}
	return out
}

// Referenced returns every range the text mentions: explicit dates, month-year
// pairs and relative phrases resolved against today.
func Referenced(text string, today time.Time) []Range {
	lower := strings.ToLower(text)
	var out []Range

	lower = replaceMatches(lower, isoDatePattern, func(m []string) bool {
		t, ok := makeDate(m[1], m[2], m[3])
		if ok {
			out = append(out, Range{Start: t, End: t})
		}
		return ok
	})
	lower = replaceMatches(lower, dayMonthPattern, func(m []string) bool {
		month, ok := months[m[2]]
		if !ok {
			return false
		}
		t, ok := makeDate(m[3], strconv.Itoa(int(month)), m[1])
		if ok {
			out = append(out, Range{Start: t, End: t})
		}
		return ok
	})
	lower = replaceMatches(lower, monthYearPattern, func(m []string) bool {
		month, ok := months[m[1]]
		if !ok {
			return false
		}
		year, err := strconv.Atoi(m[2])
		if err != nil {
			return false
		}
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		out = append(out, Range{Start: start, End: start.AddDate(0, 1, -1)})
		return true
	})

	ranges := make(map[string]Range)
	for _, period := range Periods(today) {
		ranges[period.Key] = period.Range
	}
	for _, p := range phrasePatterns {
		if p.pattern.MatchString(lower) {
			out = append(out, ranges[p.key])
			lower = p.pattern.ReplaceAllString(lower, " ")
		}
	}
	return out
}

// LatestReferenced returns the last day of the latest range the text mentions.
func LatestReferenced(text string, today time.Time) (time.Time, bool) {
	ranges := Referenced(text, today)
	if len(ranges) == 0 {
		return time.Time{}, false
	}
	latest := ranges[0].End
	for _, r := range ranges[1:] {
		if r.End.After(latest) {
			latest = r.End
		}
	}
	return latest, true
}

// replaceMatches blanks out every match that visit accepts so later patterns
// do not read the same words twice.
func replaceMatches(text string, pattern *regexp.Regexp, visit func([]string) bool) string {
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		if visit(pattern.FindStringSubmatch(match)) {
			return " "
		}
		return match
	})
}

func makeDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
