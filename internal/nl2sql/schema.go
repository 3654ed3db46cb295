package nl2sql

import (
	"fmt"
	"strings"

	"github.com/pdnchat/pdnchat/internal/dataset"
)

// SchemaVersion identifies the textual contract the prompts describe. Bump it
// whenever a column, type or rule changes.
const SchemaVersion = "2025-12.1"

type Column struct {
	Name        string
	Type        string
	Description string
}

// Schema is the static description of the dataset handed to the reasoning
// service. It is built once at startup.
type Schema struct {
	Version   string
	Table     string
	Columns   []Column
	Forbidden []string
}

func DefaultSchema() Schema {
	return Schema{
		Version: SchemaVersion,
		Table:   dataset.LogicalTable,
		Columns: []Column{
			{Name: "event_day", Type: "TEXT", Description: "day of week such as Sunday; informational only, never filter dates with it"},
			{Name: "event_date", Type: "DATE", Description: "calendar date of the event; use it for every date filter"},
			{Name: "event_title", Type: "TEXT", Description: "campaign name, upper case, e.g. KEMPEN DERMA DARAH, PUSAT PENDERMAAN STATIK"},
			{Name: "event_url", Type: "TEXT", Description: "official event page; the same URL repeats across locations"},
			{Name: "organizer", Type: "TEXT", Description: "hosting organisation, upper case, e.g. KIPMALL BANGI, AEON - CHERAS SELATAN STORE AND SHOPPING CENTRE"},
			{Name: "blood_donation_location", Type: "TEXT", Description: "full venue address in upper case; there is no separate city or state column"},
			{Name: "start_time", Type: "TEXT", Description: "start time as written on the website, e.g. 10.00 PAGI or SESI 1 10.00 PAGI - 1.45 T/HARI; not normalized, no time arithmetic"},
			{Name: "end_time", Type: "TEXT", Description: "end time as written on the website, e.g. 5.00 PETANG or 7.00 MALAM; not normalized"},
			{Name: "blood_donor_target", Type: "INTEGER", Description: "donor target; 0 means no target or a static donation centre, include all rows in totals unless asked otherwise"},
		},
		Forbidden: []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "CREATE", "COPY", "ATTACH", "INSTALL", "LOAD", "PRAGMA", "SET"},
	}
}

func (s Schema) Validate() error {
	if strings.TrimSpace(s.Table) == "" {
		return fmt.Errorf("schema table name is required")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema must declare at least one column")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, column := range s.Columns {
		if column.Name == "" {
			return fmt.Errorf("schema column name is required")
		}
		if _, ok := seen[column.Name]; ok {
			return fmt.Errorf("duplicate schema column %q", column.Name)
		}
		seen[column.Name] = struct{}{}
	}
	return nil
}
