package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// RowError reports a source row that could not be normalized.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

type ReadOptions struct {
	// Lenient skips malformed rows instead of failing the whole read.
	Lenient bool
}

type ReadResult struct {
	Events  []Event
	Skipped []RowError
}

var ErrMissingColumn = errors.New("missing required column")

var sourceDateLayouts = []string{
	DateLayout,
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"Monday, 2 January 2006",
	"02/01/2006",
	"2/1/2006",
}

// ReadCSV reads either the scraped export or an already canonical file and
// returns normalized events. Header names are matched case-insensitively with
// spaces and punctuation folded to underscores.
func ReadCSV(r io.Reader, opts ReadOptions) (ReadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ReadResult{}, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[NormalizeHeader(name)] = i
	}
	for _, required := range []string{"event_date", "event_title", "blood_donation_location"} {
		if _, ok := index[required]; !ok {
			return ReadResult{}, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var result ReadResult
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return result, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if isBlankRecord(record) {
			continue
		}
		event, err := eventFromRecord(record, index)
		if err != nil {
			rowErr := RowError{Line: line, Err: err}
			if !opts.Lenient {
				return result, &rowErr
			}
			result.Skipped = append(result.Skipped, rowErr)
			continue
		}
		result.Events = append(result.Events, event)
	}
	return result, nil
}

// WriteCSV writes events in canonical form: snake_case header, ISO dates and
// integer targets.
func WriteCSV(w io.Writer, events []Event) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, event := range events {
		record := []string{
			event.EventDay,
			event.EventDate.Format(DateLayout),
			event.EventTitle,
			event.EventURL,
			event.Organizer,
			event.BloodDonationLocation,
			event.StartTime,
			event.EndTime,
			strconv.FormatInt(event.BloodDonorTarget, 10),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// NormalizeHeader folds a header such as "Blood Donation Location" to
// "blood_donation_location".
func NormalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// ParseEventDate accepts the canonical ISO form and the long forms used by the
// source website ("1 January 2023").
func ParseEventDate(raw string) (time.Time, error) {
	value := strings.Join(strings.Fields(raw), " ")
	if value == "" {
		return time.Time{}, fmt.Errorf("event_date is empty")
	}
	for _, layout := range sourceDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event_date %q", raw)
}

// ParseDonorTarget parses the donor target; blank and dash mean no target.
func ParseDonorTarget(raw string) (int64, error) {
	value := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	switch value {
	case "", "-", "TIADA", "N/A":
		return 0, nil
	}
	if strings.Contains(value, ".") {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid blood_donor_target %q", raw)
		}
		value = strconv.FormatInt(int64(f), 10)
	}
	target, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid blood_donor_target %q", raw)
	}
	if target < 0 {
		return 0, fmt.Errorf("negative blood_donor_target %d", target)
	}
	return target, nil
}

func eventFromRecord(record []string, index map[string]int) (Event, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := ParseEventDate(field("event_date"))
	if err != nil {
		return Event{}, err
	}
	target, err := ParseDonorTarget(field("blood_donor_target"))
	if err != nil {
		return Event{}, err
	}
	day := field("event_day")
	if day == "" {
		day = date.Weekday().String()
	}
	return Event{
		EventDay:              day,
		EventDate:             date,
		EventTitle:            field("event_title"),
		EventURL:              field("event_url"),
		Organizer:             field("organizer"),
		BloodDonationLocation: field("blood_donation_location"),
		StartTime:             field("start_time"),
		EndTime:               field("end_time"),
		BloodDonorTarget:      target,
	}, nil
}

func isBlankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
