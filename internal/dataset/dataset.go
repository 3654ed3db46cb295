// Package dataset defines the blood-donation events table and the tooling that
// produces, publishes and locates its files.
package dataset

import (
	"time"
)

// LogicalTable is the only table name the query synthesizer may reference.
const LogicalTable = "blood_donation_events.csv"

// DateLayout is the canonical on-disk representation of event_date.
const DateLayout = "2006-01-02"

// Columns lists the fixed column set in file order.
var Columns = []string{
	"event_day",
	"event_date",
	"event_title",
	"event_url",
	"organizer",
	"blood_donation_location",
	"start_time",
	"end_time",
	"blood_donor_target",
}

// Event is one blood-donation event at one venue on one date. Rows sharing
// title, date and url are distinct events.
type Event struct {
	EventDay              string    `json:"event_day"`
	EventDate             time.Time `json:"event_date"`
	EventTitle            string    `json:"event_title"`
	EventURL              string    `json:"event_url"`
	Organizer             string    `json:"organizer"`
	BloodDonationLocation string    `json:"blood_donation_location"`
	StartTime             string    `json:"start_time"`
	EndTime               string    `json:"end_time"`
	BloodDonorTarget      int64     `json:"blood_donor_target"`
}

// MaxDate returns the latest event date, or nil for an empty slice.
func MaxDate(events []Event) *time.Time {
	var out *time.Time
	for i := range events {
		d := events[i].EventDate
		if out == nil || d.After(*out) {
			copy := d
			out = &copy
		}
	}
	return out
}
