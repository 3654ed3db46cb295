package query

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestPayloadRoundTripPreservesRowsAndDates(t *testing.T) {
	outcome := Outcome{
		Kind:    OutcomeRows,
		Columns: []string{"event_date", "organizer", "blood_donor_target", "avg_target", "whole", "note"},
		Rows: [][]any{
			{"2025-12-20", "KIPMALL BANGI", int64(80), 40.5, 2.0, nil},
			{"2025-12-21", "AEON \"CHERAS\"", int64(0), 0.25, 3.0, "tiada"},
		},
		Truncated: true,
	}
	payload, err := outcome.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if !strings.Contains(payload, `{"event_date":"2025-12-20","organizer":"KIPMALL BANGI"`) {
		t.Fatalf("payload does not keep column order: %s", payload)
	}

	parsed, err := ParsePayload(payload)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if parsed.Kind != OutcomeRows || !parsed.Truncated {
		t.Fatalf("parsed header = %+v", parsed)
	}
	if !reflect.DeepEqual(parsed.Columns, outcome.Columns) {
		t.Fatalf("columns = %v", parsed.Columns)
	}
	if !reflect.DeepEqual(parsed.Rows, outcome.Rows) {
		t.Fatalf("rows = %#v, want %#v", parsed.Rows, outcome.Rows)
	}
}

func TestPayloadNoDataCarriesMaxDate(t *testing.T) {
	maxDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	payload, err := Outcome{Kind: OutcomeNoData, MaxAvailableDate: &maxDate}.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if !strings.Contains(payload, `"rows":[]`) || !strings.Contains(payload, `"max_available_date":"2025-06-01"`) {
		t.Fatalf("payload = %s", payload)
	}
	parsed, err := ParsePayload(payload)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if parsed.MaxAvailableDate == nil || !parsed.MaxAvailableDate.Equal(maxDate) {
		t.Fatalf("MaxAvailableDate = %v", parsed.MaxAvailableDate)
	}

	empty, err := Outcome{Kind: OutcomeNoData}.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	parsed, err = ParsePayload(empty)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if parsed.MaxAvailableDate != nil {
		t.Fatalf("MaxAvailableDate = %v, want nil", parsed.MaxAvailableDate)
	}
}

func TestPayloadErrorKeepsEngineMessage(t *testing.T) {
	payload, err := Outcome{Kind: OutcomeError, Error: "Binder Error: column x not found"}.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	parsed, err := ParsePayload(payload)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if parsed.Error != "Binder Error: column x not found" {
		t.Fatalf("Error = %q", parsed.Error)
	}
}

func TestParsePayloadRejectsUnknownKind(t *testing.T) {
	if _, err := ParsePayload(`{"kind":"maybe"}`); err == nil {
		t.Fatal("expected unknown kind error")
	}
	if _, err := ParsePayload(`not json`); err == nil {
		t.Fatal("expected decode error")
	}
}
