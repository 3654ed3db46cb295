package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the on-disk encoding of the dataset file.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported dataset file %q: want .csv or .parquet", path)
	}
}

// Locator returns the DuckDB table expression that reads the dataset file at
// path. The path is made absolute so the expression never contains the bare
// logical table name.
func Locator(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("dataset path is required")
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve dataset path: %w", err)
	}
	quoted := quoteLiteral(filepath.ToSlash(abs))
	switch format {
	case FormatParquet:
		return fmt.Sprintf("read_parquet(%s)", quoted), nil
	default:
		return fmt.Sprintf(
			"read_csv(%s, header = true, types = {'event_date': 'DATE', 'blood_donor_target': 'BIGINT'})",
			quoted,
		), nil
	}
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
