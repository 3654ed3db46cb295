package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdnchat/pdnchat/internal/dataset"
	"github.com/pdnchat/pdnchat/internal/query"
)

func TestExecuteCountsEventsFromCSV(t *testing.T) {
	locator := writeFixture(t, "blood_donation_events.csv")
	engine := NewEngine(Config{})

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT COUNT(*) AS event_count FROM " + locator + " WHERE event_date = DATE '2025-12-20'",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != int64(2) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
}

func TestExecuteNormalizesDatesAndHugeints(t *testing.T) {
	locator := writeFixture(t, "events.parquet")
	engine := NewEngine(Config{})

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT event_date, SUM(blood_donor_target) AS total_target FROM " + locator +
			" GROUP BY event_date ORDER BY event_date",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != "2025-12-20" {
		t.Fatalf("event_date = %#v", result.Rows[0][0])
	}
	if result.Rows[0][1] != int64(160) {
		t.Fatalf("total_target = %#v", result.Rows[0][1])
	}
	if strings.Join(result.Columns, ",") != "event_date,total_target" {
		t.Fatalf("columns = %v", result.Columns)
	}
}

func TestExecuteSupportsTrailingSemicolonWithRowLimit(t *testing.T) {
	locator := writeFixture(t, "blood_donation_events.csv")
	engine := NewEngine(Config{})

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT event_title FROM " + locator + " ORDER BY event_date;",
		RowLimit: 2,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
}

func TestExecuteRejectsNonQueryStatements(t *testing.T) {
	engine := NewEngine(Config{})
	for _, statement := range []string{
		"DROP TABLE blood_donation_events",
		"CREATE TABLE t AS SELECT 1",
		"SELECT 1; DELETE FROM t",
	} {
		if _, err := engine.Execute(context.Background(), query.Request{SQL: statement}); err == nil {
			t.Fatalf("Execute(%q) expected error", statement)
		}
	}
}

func TestExecuteRequiresSQL(t *testing.T) {
	if _, err := NewEngine(Config{}).Execute(context.Background(), query.Request{SQL: " ; "}); err == nil {
		t.Fatal("expected error for empty sql")
	}
}

func TestExecutorAgainstEngineReturnsNoDataWithMaxDate(t *testing.T) {
	locator := writeFixture(t, "blood_donation_events.csv")
	executor, err := query.NewExecutor(NewEngine(Config{}), query.ExecutorConfig{
		LogicalTable: dataset.LogicalTable,
		Locator:      locator,
		RowLimit:     200,
	})
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	outcome := executor.Execute(context.Background(),
		"SELECT * FROM blood_donation_events.csv WHERE blood_donation_location ILIKE '%bangi%' AND event_date > '2026-01-01'")
	if outcome.Kind != query.OutcomeNoData {
		t.Fatalf("Kind = %q (error %q)", outcome.Kind, outcome.Error)
	}
	if outcome.MaxAvailableDate == nil || outcome.MaxAvailableDate.Format("2006-01-02") != "2025-12-21" {
		t.Fatalf("MaxAvailableDate = %v", outcome.MaxAvailableDate)
	}

	rows := executor.Execute(context.Background(),
		"SELECT event_date, organizer FROM 'blood_donation_events.csv' WHERE organizer ILIKE '%kipmall%'")
	if rows.Kind != query.OutcomeRows || len(rows.Rows) != 2 {
		t.Fatalf("rows outcome = %+v", rows)
	}

	if err := executor.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	failed := executor.Execute(context.Background(), "SELECT no_such_column FROM blood_donation_events.csv")
	if failed.Kind != query.OutcomeError || failed.Error == "" {
		t.Fatalf("error outcome = %+v", failed)
	}
}

func TestExecutorMaxDateNilForEmptyDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := dataset.WriteParquet(file, nil); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}
	_ = file.Close()
	locator, err := dataset.Locator(path)
	if err != nil {
		t.Fatalf("Locator() error = %v", err)
	}

	executor, err := query.NewExecutor(NewEngine(Config{}), query.ExecutorConfig{
		LogicalTable: dataset.LogicalTable,
		Locator:      locator,
	})
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	outcome := executor.Execute(context.Background(), "SELECT * FROM blood_donation_events.csv")
	if outcome.Kind != query.OutcomeNoData {
		t.Fatalf("Kind = %q (error %q)", outcome.Kind, outcome.Error)
	}
	if outcome.MaxAvailableDate != nil {
		t.Fatalf("MaxAvailableDate = %v, want nil", outcome.MaxAvailableDate)
	}
}

func TestNormalizeValue(t *testing.T) {
	if got := normalizeValue(time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)); got != "2025-12-20" {
		t.Fatalf("date = %#v", got)
	}
	if got := normalizeValue(time.Date(2025, 12, 20, 9, 30, 0, 0, time.UTC)); got != "2025-12-20T09:30:00Z" {
		t.Fatalf("timestamp = %#v", got)
	}
	if got := normalizeValue(time.Date(1, 1, 1, 11, 0, 0, 0, time.UTC)); got != "11:00:00" {
		t.Fatalf("time = %#v", got)
	}
	if got := normalizeValue(int32(7)); got != int64(7) {
		t.Fatalf("int32 = %#v", got)
	}
	if got := normalizeValue([]byte("x")); got != "x" {
		t.Fatalf("bytes = %#v", got)
	}
}

func writeFixture(t *testing.T, name string) string {
	t.Helper()
	events := []dataset.Event{
		fixtureEvent("2025-12-20", "KIPMALL BANGI", "KIPMALL BANGI, LEVEL 1, BANGI", 80),
		fixtureEvent("2025-12-20", "KIPMALL BANGI", "KIPMALL BANGI, LEVEL 1, BANGI", 80),
		fixtureEvent("2025-12-21", "AEON CHERAS", "AEON CHERAS SELATAN, CHERAS", 0),
	}
	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer func() { _ = file.Close() }()

	if strings.HasSuffix(name, ".parquet") {
		err = dataset.WriteParquet(file, events)
	} else {
		err = dataset.WriteCSV(file, events)
	}
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	locator, err := dataset.Locator(path)
	if err != nil {
		t.Fatalf("Locator() error = %v", err)
	}
	return locator
}

func fixtureEvent(date, organizer, location string, target int64) dataset.Event {
	parsed, _ := time.Parse("2006-01-02", date)
	return dataset.Event{
		EventDay:              parsed.Weekday().String(),
		EventDate:             parsed,
		EventTitle:            "KEMPEN DERMA DARAH",
		EventURL:              "https://pdn.gov.my/e/" + date,
		Organizer:             organizer,
		BloodDonationLocation: location,
		StartTime:             "11.00 PAGI",
		EndTime:               "5.00 PETANG",
		BloodDonorTarget:      target,
	}
}
