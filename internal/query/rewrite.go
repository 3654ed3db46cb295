package query

import "strings"

// RewriteTable replaces every reference to the logical table name with the
// storage locator. A reference is the name bare, or wrapped in single, double
// or back quotes. Matching is ASCII case-insensitive.
//
// The substitution is purely textual. A string literal that contains the
// logical name as a standalone token, for example
// WHERE blood_donation_location = 'blood_donation_events.csv', is rewritten
// too and the statement changes meaning. Occurrences embedded in a longer
// token (a path segment such as /data/blood_donation_events.csv, or a
// pattern such as '%blood_donation_events.csv%') are left alone.
//
// Rewriting is idempotent as long as the locator has no reference of its own;
// NewExecutor enforces that.
func RewriteTable(sqlText, logical, locator string) string {
	if logical == "" {
		return sqlText
	}
	lowerSQL := asciiLower(sqlText)
	lowerName := asciiLower(logical)

	var b strings.Builder
	last := 0
	for searchFrom := 0; searchFrom < len(sqlText); {
		idx := strings.Index(lowerSQL[searchFrom:], lowerName)
		if idx < 0 {
			break
		}
		start := searchFrom + idx
		end := start + len(lowerName)

		before := byteAt(sqlText, start-1)
		after := byteAt(sqlText, end)
		switch {
		case isQuote(before) && after == before:
			b.WriteString(sqlText[last : start-1])
			b.WriteString(locator)
			last = end + 1
		case !isNameByte(before) && !isQuote(before) && !isNameByte(after):
			b.WriteString(sqlText[last:start])
			b.WriteString(locator)
			last = end
		}
		searchFrom = end
	}
	if last == 0 {
		return sqlText
	}
	b.WriteString(sqlText[last:])
	return b.String()
}

// HasTableReference reports whether sqlText contains a reference that
// RewriteTable would replace.
func HasTableReference(sqlText, logical string) bool {
	const marker = "\x00"
	return RewriteTable(sqlText, logical, marker) != sqlText
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"' || c == '`'
}

// isNameByte covers identifier characters plus the path and pattern
// characters that make an occurrence part of a longer token.
func isNameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '/', '\\', ':', '-', '%', '$':
		return true
	}
	return c >= 0x80
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
