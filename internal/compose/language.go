package compose

import (
	"strings"
	"unicode"
)

type Language string

const (
	English Language = "en"
	Malay   Language = "ms"
)

func ParseLanguage(value string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "en", "english":
		return English, true
	case "ms", "my", "malay", "bm", "bahasa":
		return Malay, true
	}
	return "", false
}

func (l Language) Name() string {
	if l == Malay {
		return "Bahasa Melayu"
	}
	return "English"
}

var malayWords = wordSet(
	"ada", "apa", "berapa", "bila", "mana", "di", "ke", "dan", "yang", "untuk", "pada", "dengan",
	"ini", "itu", "esok", "lusa", "hari", "minggu", "bulan", "tahun", "depan", "hadapan", "hujung",
	"derma", "darah", "penderma", "pendermaan", "acara", "kempen", "lokasi", "tempat", "jumlah",
	"sasaran", "pukul", "jam", "saya", "boleh", "tak", "tidak", "nak", "mahu", "dekat", "sini",
	"sana", "kat", "tolong", "sila", "terima", "kasih", "berapakah", "adakah", "manakah", "bilakah",
	"seterusnya", "semua", "senarai", "paling", "banyak", "anjuran", "penganjur",
)

var englishWords = wordSet(
	"the", "is", "are", "was", "what", "where", "when", "which", "how", "many", "much", "any",
	"events", "in", "on", "at", "this", "next", "week", "weekend", "today", "tomorrow", "month",
	"year", "there", "donation", "donations", "blood", "show", "me", "near", "can", "i", "for",
	"and", "of", "time", "does", "do", "start", "end", "total", "target", "list", "most",
	"organizer", "organiser", "upcoming", "please", "thanks", "about", "happening", "held",
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// DetectLanguage scores the question's words against small Malay and English
// vocabularies. Ties and questions with no known words return fallback.
func DetectLanguage(question string, fallback Language) Language {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	malay, english := 0, 0
	for _, word := range words {
		if _, ok := malayWords[word]; ok {
			malay++
		}
		if _, ok := englishWords[word]; ok {
			english++
		}
	}
	switch {
	case malay > english:
		return Malay
	case english > malay:
		return English
	default:
		if fallback == "" {
			return English
		}
		return fallback
	}
}
