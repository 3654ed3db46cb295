package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdnchat/pdnchat/internal/query"
)

// NoDataVariant picks the reply for an empty result.
type NoDataVariant string

const (
	VariantNotYetPublished NoDataVariant = "not_yet_published"
	VariantNoMatch         NoDataVariant = "no_match"
)

const listLimit = 10

// UnanswerableAnswer is the fixed reply for questions outside the dataset.
func UnanswerableAnswer(lang Language) string {
	if lang == Malay {
		return "Maaf, saya hanya boleh membantu tentang acara derma darah di Malaysia, seperti tarikh, lokasi, penganjur dan sasaran penderma. Cuba tanya contohnya: \"Ada acara derma darah di Bangi minggu ini?\""
	}
	return "Sorry, I can only help with blood donation events in Malaysia, such as dates, venues, organizers and donor targets. Try asking something like: \"Any blood donation events in Bangi this week?\""
}

// SynthesisFailureAnswer is the reply when no SQL could be produced.
func SynthesisFailureAnswer(lang Language) string {
	if lang == Malay {
		return "Maaf, saya tidak dapat memproses soalan anda buat masa ini. Sila cuba lagi sebentar lagi atau tanya dengan cara lain."
	}
	return "Sorry, I couldn't process your question right now. Please try again in a moment or rephrase it."
}

func executionErrorAnswer(lang Language) string {
	if lang == Malay {
		return "Maaf, saya tidak dapat mencari maklumat acara untuk soalan itu. Boleh cuba tanya semula dengan nama tempat atau tarikh?"
	}
	return "Sorry, I couldn't look up events for that question. Could you try asking again with a place or a date?"
}

func notYetPublishedAnswer(lang Language, maxDate *time.Time) string {
	if lang == Malay {
		if maxDate != nil {
			return fmt.Sprintf("Jadual acara untuk tarikh tersebut belum diterbitkan lagi. Maklumat terkini yang saya ada adalah sehingga **%s**. Sila semak semula apabila tarikh itu semakin hampir! 🩸", FormatDate(*maxDate))
		}
		return "Jadual acara untuk tarikh tersebut belum diterbitkan lagi. Sila semak semula apabila tarikh itu semakin hampir! 🩸"
	}
	if maxDate != nil {
		return fmt.Sprintf("The event schedule for those dates hasn't been published yet. The latest events I have run until **%s**. Please check back closer to the date! 🩸", FormatDate(*maxDate))
	}
	return "The event schedule for those dates hasn't been published yet. Please check back closer to the date! 🩸"
}

func noMatchAnswer(lang Language) string {
	if lang == Malay {
		return "Maaf, saya tidak menemui sebarang acara derma darah yang sepadan. 😔\n\n" +
			"Anda boleh:\n" +
			"• Semak acara di **kawasan berhampiran**\n" +
			"• Cuba **tarikh lain** (hujung minggu ini atau bulan depan)\n" +
			"• Kunjungi **pusat derma darah tetap** (dibuka setiap hari)\n\n" +
			"Mana satu pilihan anda?"
	}
	return "I couldn't find any matching blood donation events. 😔\n\n" +
		"Here are a few options:\n" +
		"• Check events in **nearby areas**\n" +
		"• Look at **different dates** (this weekend or next month)\n" +
		"• Visit a **permanent donation centre** (open daily)\n\n" +
		"What would you prefer?"
}

// rowsAnswer states single values directly and lists events otherwise.
func rowsAnswer(lang Language, outcome query.Outcome, rows []DisplayRow) string {
	if len(rows) == 1 && len(rows[0]) == 1 {
		return singleValueAnswer(lang, outcome.Columns[0], rows[0][0].Value)
	}

	var b strings.Builder
	count := len(rows)
	if lang == Malay {
		fmt.Fprintf(&b, "Saya menemui **%d** keputusan untuk anda! 🩸\n\n", count)
	} else {
		fmt.Fprintf(&b, "I found **%d** result%s for you! 🩸\n\n", count, plural(count))
	}
	shown := rows
	if len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	for _, row := range shown {
		b.WriteString(listEntry(row))
		b.WriteString("\n")
	}
	if remaining := count - len(shown); remaining > 0 || outcome.Truncated {
		if lang == Malay {
			b.WriteString("\n...dan ada lagi. Tanya dengan lebih khusus untuk senarai yang lebih pendek.\n")
		} else {
			b.WriteString("\n...and more. Ask a narrower question for a shorter list.\n")
		}
	}
	if lang == Malay {
		b.WriteString("\nMahu lihat acara di kawasan atau tarikh lain?")
	} else {
		b.WriteString("\nWould you like events in other areas or on other dates?")
	}
	return b.String()
}

func listEntry(row DisplayRow) string {
	date, hasDate := row.Get("event_date")
	location, hasLocation := row.Get(locationColumn)
	if !hasDate && !hasLocation {
		return "• " + row.String()
	}
	var b strings.Builder
	b.WriteString("•")
	if hasDate {
		b.WriteString(" **" + date + "**")
	}
	if title, ok := row.Get("event_title"); ok && title != "" {
		b.WriteString(" " + VenueLabel(title))
	}
	if hasLocation && location != "" {
		link, _ := row.Get("map_link")
		b.WriteString("\n   [" + VenueLabel(location) + "](" + link + ")")
	}
	start, hasStart := row.Get("start_time")
	end, hasEnd := row.Get("end_time")
	switch {
	case hasStart && hasEnd && start != "" && end != "":
		b.WriteString("\n   " + start + " - " + end)
	case hasStart && start != "":
		b.WriteString("\n   " + start)
	}
	return b.String()
}

func singleValueAnswer(lang Language, column, value string) string {
	lower := strings.ToLower(column)
	switch {
	case strings.Contains(lower, "count") || strings.Contains(lower, "total_events"):
		if lang == Malay {
			return fmt.Sprintf("Terdapat **%s** acara derma darah yang sepadan dengan soalan anda! 🩸", value)
		}
		return fmt.Sprintf("There are **%s** blood donation events matching your question! 🩸", value)
	case strings.Contains(lower, "target"):
		if lang == Malay {
			return fmt.Sprintf("Sasaran penderma ialah **%s** orang! 💪", value)
		}
		return fmt.Sprintf("The donor target is **%s** donors! 💪", value)
	default:
		if lang == Malay {
			return fmt.Sprintf("Ini jawapannya: **%s**.", value)
		}
		return fmt.Sprintf("Here's what I found: **%s**.", value)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
