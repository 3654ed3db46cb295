package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

const payloadDateLayout = "2006-01-02"

// MarshalJSON writes the outcome as
// {"kind","columns","rows":[{column: value}],"max_available_date","error","truncated"}
// with each row object keyed in column order.
func (o Outcome) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	if err := writeJSON(&buf, string(o.Kind)); err != nil {
		return nil, err
	}

	columns := o.Columns
	if columns == nil {
		columns = []string{}
	}
	buf.WriteString(`,"columns":`)
	if err := writeJSON(&buf, columns); err != nil {
		return nil, err
	}

	buf.WriteString(`,"rows":[`)
	for r, row := range o.Rows {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, column := range columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, column); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			var value any
			if i < len(row) {
				value = row[i]
			}
			if err := writeValue(&buf, value); err != nil {
				return nil, fmt.Errorf("encode row %d column %q: %w", r, column, err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	buf.WriteString(`,"max_available_date":`)
	if o.MaxAvailableDate != nil {
		if err := writeJSON(&buf, o.MaxAvailableDate.Format(payloadDateLayout)); err != nil {
			return nil, err
		}
	} else {
		buf.WriteString("null")
	}
	buf.WriteString(`,"error":`)
	if err := writeJSON(&buf, o.Error); err != nil {
		return nil, err
	}
	buf.WriteString(`,"truncated":`)
	buf.WriteString(strconv.FormatBool(o.Truncated))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Payload serializes the outcome for display and history.
func (o Outcome) Payload() (string, error) {
	data, err := o.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal outcome payload: %w", err)
	}
	return string(data), nil
}

// ParsePayload rebuilds an Outcome from Payload output. Integral numbers come
// back as int64, other numbers as float64, dates as the strings they were
// written as.
func ParsePayload(payload string) (Outcome, error) {
	var raw struct {
		Kind             OutcomeKind                  `json:"kind"`
		Columns          []string                     `json:"columns"`
		Rows             []map[string]json.RawMessage `json:"rows"`
		MaxAvailableDate *string                      `json:"max_available_date"`
		Error            string                       `json:"error"`
		Truncated        bool                         `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Outcome{}, fmt.Errorf("decode outcome payload: %w", err)
	}
	switch raw.Kind {
	case OutcomeRows, OutcomeNoData, OutcomeError:
	default:
		return Outcome{}, fmt.Errorf("unknown outcome kind %q", raw.Kind)
	}

	out := Outcome{
		Kind:      raw.Kind,
		Columns:   raw.Columns,
		Error:     raw.Error,
		Truncated: raw.Truncated,
	}
	if raw.MaxAvailableDate != nil {
		parsed, err := time.Parse(payloadDateLayout, *raw.MaxAvailableDate)
		if err != nil {
			return Outcome{}, fmt.Errorf("decode max_available_date: %w", err)
		}
		out.MaxAvailableDate = &parsed
	}
	if len(raw.Rows) > 0 {
		out.Rows = make([][]any, 0, len(raw.Rows))
	}
	for r, record := range raw.Rows {
		row := make([]any, len(raw.Columns))
		for i, column := range raw.Columns {
			value, err := decodeValue(record[column])
			if err != nil {
				return Outcome{}, fmt.Errorf("decode row %d column %q: %w", r, column, err)
			}
			row[i] = value
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func writeJSON(buf *bytes.Buffer, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

func writeValue(buf *bytes.Buffer, value any) error {
	switch typed := value.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case float64:
		writeFloat(buf, typed, 64)
		return nil
	case float32:
		writeFloat(buf, float64(typed), 32)
		return nil
	case time.Time:
		return writeJSON(buf, formatTime(typed))
	default:
		return writeJSON(buf, typed)
	}
}

// writeFloat keeps a decimal point on integral floats so they decode as
// float64 rather than int64.
func writeFloat(buf *bytes.Buffer, value float64, bitSize int) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		buf.WriteString("null")
		return
	}
	formatted := strconv.FormatFloat(value, 'g', -1, bitSize)
	if !bytes.ContainsAny([]byte(formatted), ".eE") {
		formatted += ".0"
	}
	buf.WriteString(formatted)
}

func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return normalizeDecoded(value), nil
}

func normalizeDecoded(value any) any {
	switch typed := value.(type) {
	case json.Number:
		text := typed.String()
		if !bytes.ContainsAny([]byte(text), ".eE") {
			if i, err := typed.Int64(); err == nil {
				return i
			}
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return text
	case []any:
		for i := range typed {
			typed[i] = normalizeDecoded(typed[i])
		}
		return typed
	case map[string]any:
		for key := range typed {
			typed[key] = normalizeDecoded(typed[key])
		}
		return typed
	default:
		return typed
	}
}

// formatTime renders dates as YYYY-MM-DD and instants as RFC 3339.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(payloadDateLayout)
	}
	return t.Format(time.RFC3339Nano)
}
