package dataset

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

type parquetEvent struct {
	EventDay              string `parquet:"event_day"`
	EventDate             int32  `parquet:"event_date,date"`
	EventTitle            string `parquet:"event_title"`
	EventURL              string `parquet:"event_url"`
	Organizer             string `parquet:"organizer"`
	BloodDonationLocation string `parquet:"blood_donation_location"`
	StartTime             string `parquet:"start_time"`
	EndTime               string `parquet:"end_time"`
	BloodDonorTarget      int64  `parquet:"blood_donor_target"`
}

const secondsPerDay = 24 * 60 * 60

// WriteParquet writes events with event_date stored as the DATE logical type.
func WriteParquet(w io.Writer, events []Event) error {
	rows := make([]parquetEvent, 0, len(events))
	for _, event := range events {
		rows = append(rows, parquetEvent{
			EventDay:              event.EventDay,
			EventDate:             daysSinceEpoch(event.EventDate),
			EventTitle:            event.EventTitle,
			EventURL:              event.EventURL,
			Organizer:             event.Organizer,
			BloodDonationLocation: event.BloodDonationLocation,
			StartTime:             event.StartTime,
			EndTime:               event.EndTime,
			BloodDonorTarget:      event.BloodDonorTarget,
		})
	}

	writer := parquet.NewGenericWriter[parquetEvent](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads a file produced by WriteParquet.
func ReadParquet(data []byte) ([]Event, error) {
	rows, err := parquet.Read[parquetEvent](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, Event{
			EventDay:              row.EventDay,
			EventDate:             time.Unix(int64(row.EventDate)*secondsPerDay, 0).UTC(),
			EventTitle:            row.EventTitle,
			EventURL:              row.EventURL,
			Organizer:             row.Organizer,
			BloodDonationLocation: row.BloodDonationLocation,
			StartTime:             row.StartTime,
			EndTime:               row.EndTime,
			BloodDonorTarget:      row.BloodDonorTarget,
		})
	}
	return events, nil
}

func daysSinceEpoch(t time.Time) int32 {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int32(day.Unix() / secondsPerDay)
}
