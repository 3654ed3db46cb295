package compose

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pdnchat/pdnchat/internal/calendar"
)

// MaxEmoji is the number of decorative symbols kept in a reply.
const MaxEmoji = 3

const mapsSearchURL = "https://www.google.com/maps/search/?api=1&query="

var (
	clockPattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:[.:](\d{2}))?\s*(PAGI|TENGAH HARI|TGH HARI|T/HARI|T\.HARI|PETANG|MALAM|AM|PM)\b`)
	sessionPattern = regexp.MustCompile(`(?i)\bSESI\s*(\d+)\b`)
	titleCaser     = cases.Title(language.English)
)

// FormatClock rewrites Malay clock notations such as "10.00 PAGI" or
// "1.45 T/HARI" into a 12-hour clock ("10:00 AM", "1:45 PM"). Text that does
// not match is returned unchanged.
func FormatClock(value string) string {
	out := clockPattern.ReplaceAllStringFunc(value, func(match string) string {
		parts := clockPattern.FindStringSubmatch(match)
		hour, err := strconv.Atoi(parts[1])
		if err != nil || hour < 1 || hour > 12 {
			return match
		}
		minute := parts[2]
		if minute == "" {
			minute = "00"
		}
		return fmt.Sprintf("%d:%s %s", hour, minute, meridiem(hour, strings.ToUpper(parts[3])))
	})
	return sessionPattern.ReplaceAllString(out, "Session $1")
}

func meridiem(hour int, marker string) string {
	switch marker {
	case "AM":
		return "AM"
	case "PM":
		return "PM"
	case "PAGI":
		return "AM"
	case "MALAM":
		if hour == 12 {
			return "AM"
		}
		return "PM"
	case "PETANG":
		return "PM"
	default:
		// Tengah hari spans late morning to early afternoon.
		if hour == 11 {
			return "AM"
		}
		return "PM"
	}
}

// FormatDate renders t as "Saturday, 21st Dec 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s, %d%s %s %d", t.Weekday(), t.Day(), ordinalSuffix(t.Day()), t.Format("Jan"), t.Year())
}

// FormatDateValue formats ISO dates and RFC 3339 timestamps; other values are
// returned unchanged.
func FormatDateValue(value string) string {
	if t, err := time.Parse(calendar.DateLayout, value); err == nil {
		return FormatDate(t)
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return FormatDate(t)
	}
	return value
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// MapsLink returns a Google Maps search URL for a venue address.
func MapsLink(location string) string {
	return mapsSearchURL + url.QueryEscape(strings.Join(strings.Fields(location), " "))
}

// VenueLabel shortens an upper-case address to its first segment in title case.
func VenueLabel(location string) string {
	label := strings.TrimSpace(location)
	if head, _, ok := strings.Cut(label, ","); ok && strings.TrimSpace(head) != "" {
		label = head
	}
	return titleCaser.String(strings.ToLower(strings.TrimSpace(label)))
}

// CapEmoji keeps the first max decorative symbols and drops the rest,
// including their joiners, variation selectors and skin-tone modifiers.
func CapEmoji(text string, max int) string {
	var b strings.Builder
	seen := 0
	keep := true
	joined := false
	for _, r := range text {
		switch {
		case isEmoji(r):
			if !joined {
				seen++
				keep = seen <= max
			}
			joined = false
			if keep {
				b.WriteRune(r)
			}
		case isEmojiModifier(r):
			joined = r == '\u200d'
			if keep {
				b.WriteRune(r)
			}
		default:
			joined = false
			keep = true
			b.WriteRune(r)
		}
	}
	if seen <= max {
		return text
	}
	return collapseSpaces(b.String())
}

func isEmojiModifier(r rune) bool {
	return r == '\u200d' || r == '\ufe0f' || (r >= 0x1F3FB && r <= 0x1F3FF)
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F3FA, r >= 0x1F400 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r == 0x2B50 || r == 0x2B55 || r == 0x2764:
		return true
	}
	return false
}

var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

func collapseSpaces(value string) string {
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(multiSpace.ReplaceAllString(line, " "), unicode.IsSpace)
	}
	return strings.Join(lines, "\n")
}

// GroupDigits renders integers with thousands separators.
func GroupDigits(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}
