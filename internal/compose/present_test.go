package compose

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pdnchat/pdnchat/internal/query"
)

func TestFormatClock(t *testing.T) {
	cases := map[string]string{
		"10.00 PAGI":                      "10:00 AM",
		"5.00 PETANG":                     "5:00 PM",
		"7.00 MALAM":                      "7:00 PM",
		"12.00 MALAM":                     "12:00 AM",
		"1.45 T/HARI":                     "1:45 PM",
		"12.00 T/HARI":                    "12:00 PM",
		"11.30 TENGAH HARI":               "11:30 AM",
		"SESI 1 10.00 PAGI – 1.45 T/HARI": "Session 1 10:00 AM – 1:45 PM",
		"2.30 petang":                     "2:30 PM",
		"9 PAGI":                          "9:00 AM",
		"SEPANJANG HARI":                  "SEPANJANG HARI",
		"":                                "",
	}
	for input, want := range cases {
		if got := FormatClock(input); got != want {
			t.Fatalf("FormatClock(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	cases := map[string]string{
		"2025-12-21": "Sunday, 21st Dec 2025",
		"2025-12-22": "Monday, 22nd Dec 2025",
		"2025-04-03": "Thursday, 3rd Apr 2025",
		"2025-04-11": "Friday, 11th Apr 2025",
		"2025-04-12": "Saturday, 12th Apr 2025",
		"2025-04-13": "Sunday, 13th Apr 2025",
		"2025-06-01": "Sunday, 1st Jun 2025",
		"not a date": "not a date",
	}
	for input, want := range cases {
		if got := FormatDateValue(input); got != want {
			t.Fatalf("FormatDateValue(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMapsLinkEncodesReservedCharacters(t *testing.T) {
	got := MapsLink("KIPMALL BANGI, LEVEL 1 & 2 #A/B")
	want := "https://www.google.com/maps/search/?api=1&query=KIPMALL+BANGI%2C+LEVEL+1+%26+2+%23A%2FB"
	if got != want {
		t.Fatalf("MapsLink() = %q, want %q", got, want)
	}
}

func TestVenueLabel(t *testing.T) {
	if got := VenueLabel("KIPMALL BANGI, LEVEL 1, JALAN 7/2"); got != "Kipmall Bangi" {
		t.Fatalf("VenueLabel() = %q", got)
	}
	if got := VenueLabel("DEWAN ORANG RAMAI"); got != "Dewan Orang Ramai" {
		t.Fatalf("VenueLabel() = %q", got)
	}
}

func TestCapEmoji(t *testing.T) {
	in := "Great 🩸 news 🎉 here 💪 and 📍 more 😔!"
	got := CapEmoji(in, 3)
	if got != "Great 🩸 news 🎉 here 💪 and more !" {
		t.Fatalf("CapEmoji() = %q", got)
	}
	if CapEmoji("no symbols", 3) != "no symbols" {
		t.Fatal("CapEmoji() changed text without emoji")
	}
	joined := "\U0001F468\u200d\U0001F469\u200d\U0001F467 \u2764\ufe0f \U0001FA78 \U0001F389"
	if got := CapEmoji(joined, 3); got != "\U0001F468\u200d\U0001F469\u200d\U0001F467 \u2764\ufe0f \U0001FA78" {
		t.Fatalf("CapEmoji(joined) = %q", got)
	}
}

func TestGroupDigits(t *testing.T) {
	cases := []struct {
		input int64
		want  string
	}{
		{input: 0, want: "0"},
		{input: 12, want: "12"},
		{input: 1200, want: "1,200"},
		{input: 1234567, want: "1,234,567"},
		{input: -4500, want: "-4,500"},
		{input: -123, want: "-123"},
		{input: math.MaxInt64, want: "9,223,372,036,854,775,807"},
		{input: math.MinInt64, want: "-9,223,372,036,854,775,808"},
	}
	for _, tc := range cases {
		if got := GroupDigits(tc.input); got != tc.want {
			t.Fatalf("GroupDigits(%d) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestDisplayRowsDoesNotModifyOutcome(t *testing.T) {
	outcome := query.Outcome{
		Kind:    query.OutcomeRows,
		Columns: []string{"event_date", "blood_donation_location", "start_time", "end_time", "blood_donor_target"},
		Rows: [][]any{
			{"2025-12-20", "KIPMALL BANGI, LEVEL 1", "11.00 PAGI", "5.00 PETANG", int64(1200)},
		},
	}
	rows := DisplayRows(outcome)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d", len(rows))
	}
	row := rows[0]
	wants := map[string]string{
		"event_date":         "Saturday, 20th Dec 2025",
		"start_time":         "11:00 AM",
		"end_time":           "5:00 PM",
		"blood_donor_target": "1,200",
		"map_link":           "https://www.google.com/maps/search/?api=1&query=KIPMALL+BANGI%2C+LEVEL+1",
	}
	for name, want := range wants {
		if got, _ := row.Get(name); got != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
	if row[2].Name != "map_link" {
		t.Fatalf("map_link should follow the venue, got order %v", row)
	}
	if outcome.Rows[0][0] != "2025-12-20" || outcome.Rows[0][2] != "11.00 PAGI" {
		t.Fatalf("outcome rows were modified: %v", outcome.Rows[0])
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		question string
		want     Language
	}{
		{"How many events today?", English},
		{"Ada acara derma darah di Bangi minggu ini?", Malay},
		{"berapa jumlah event minggu ini", Malay},
		{"total donor target bulan April", English},
		{"Kuantan?", English},
	}
	for _, tc := range cases {
		if got := DetectLanguage(tc.question, English); got != tc.want {
			t.Fatalf("DetectLanguage(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
	if got := DetectLanguage("Kuantan?", Malay); got != Malay {
		t.Fatalf("tie should use fallback, got %q", got)
	}
}

func TestChooseNoDataVariant(t *testing.T) {
	today := time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC)
	maxDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := ChooseNoDataVariant("Events in Bangi this week?", &maxDate, today); got != VariantNotYetPublished {
		t.Fatalf("variant = %q", got)
	}
	if got := ChooseNoDataVariant("Events in Bangi on 12 April 2025?", &maxDate, today); got != VariantNoMatch {
		t.Fatalf("variant = %q", got)
	}
	if got := ChooseNoDataVariant("Events in Putrajaya?", &maxDate, today); got != VariantNoMatch {
		t.Fatalf("variant = %q", got)
	}
	if got := ChooseNoDataVariant("events tomorrow", nil, today); got != VariantNotYetPublished {
		t.Fatalf("variant for empty dataset = %q", got)
	}
	if !strings.Contains(notYetPublishedAnswer(English, &maxDate), "Sunday, 1st Jun 2025") {
		t.Fatal("not-yet answer should name the latest published date")
	}
}
