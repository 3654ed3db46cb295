package demo

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/pdnchat/pdnchat/internal/dataset"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	start := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)

	first := NewGenerator(42).Events(start, 10)
	second := NewGenerator(42).Events(start, 10)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same seed produced different events")
	}
	if len(first) == 0 {
		t.Fatal("expected some events over ten days")
	}
}

func TestGeneratorEventsStayInRange(t *testing.T) {
	start := time.Date(2025, 12, 15, 18, 45, 0, 0, time.FixedZone("MYT", 8*3600))
	g := NewGenerator(7)
	g.MaxPerDay = 3
	events := g.Events(start, 14)

	first := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 0, 13)
	perDay := map[string]int{}
	urls := map[string]bool{}
	for _, event := range events {
		if event.EventDate.Before(first) || event.EventDate.After(last) {
			t.Fatalf("event date %s outside range", event.EventDate)
		}
		if event.EventDay != event.EventDate.Weekday().String() {
			t.Fatalf("event day %q does not match %s", event.EventDay, event.EventDate)
		}
		if urls[event.EventURL] {
			t.Fatalf("duplicate url %s", event.EventURL)
		}
		urls[event.EventURL] = true
		perDay[event.EventDate.Format(dataset.DateLayout)]++
	}
	for date, count := range perDay {
		if count > 3 {
			t.Fatalf("%s has %d events, want at most 3", date, count)
		}
	}
	if latest := dataset.MaxDate(events); latest == nil || latest.After(last) {
		t.Fatalf("MaxDate() = %v", latest)
	}
}

func TestGeneratedEventsSurviveCanonicalCSV(t *testing.T) {
	events := NewGenerator(3).Events(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5)

	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, events); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	read, err := dataset.ReadCSV(&buf, dataset.ReadOptions{})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if !reflect.DeepEqual(read.Events, events) {
		t.Fatalf("round trip changed events:\n got %+v\nwant %+v", read.Events, events)
	}
}
