package storage

import (
	"testing"
	"time"
)

func TestBuildSnapshotKey(t *testing.T) {
	ts := time.Date(2025, time.December, 20, 4, 5, 6, 0, time.FixedZone("MYT", 8*3600))
	key, err := BuildSnapshotKey("blood_donation_events", ".parquet", ts)
	if err != nil {
		t.Fatalf("BuildSnapshotKey() error = %v", err)
	}
	want := "blood_donation_events/snapshots/date=2025-12-19/blood_donation_events-200506.parquet"
	if key != want {
		t.Fatalf("BuildSnapshotKey() = %q, want %q", key, want)
	}
}

func TestBuildLatestKey(t *testing.T) {
	key, err := BuildLatestKey("blood_donation_events", "CSV")
	if err != nil {
		t.Fatalf("BuildLatestKey() error = %v", err)
	}
	if key != "blood_donation_events/latest.csv" {
		t.Fatalf("BuildLatestKey() = %q", key)
	}
}

func TestBuildKeyRejectsInvalidInput(t *testing.T) {
	if _, err := BuildSnapshotKey("../oops", "csv", time.Now()); err == nil {
		t.Fatal("expected invalid component error")
	}
	if _, err := BuildLatestKey("events", "xlsx"); err == nil {
		t.Fatal("expected unsupported extension error")
	}
}
