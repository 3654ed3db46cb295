package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotKey returns the immutable key for one imported copy of a dataset.
func BuildSnapshotKey(datasetName, ext string, importedAt time.Time) (string, error) {
	if err := validatePathComponent(datasetName, "dataset name"); err != nil {
		return "", err
	}
	ext, err := normalizeExt(ext)
	if err != nil {
		return "", err
	}
	ts := importedAt.UTC()
	return path.Join(
		datasetName,
		"snapshots",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s.%s", datasetName, ts.Format("150405"), ext),
	), nil
}

// BuildLatestKey returns the stable key the API reads and the importer overwrites.
func BuildLatestKey(datasetName, ext string) (string, error) {
	if err := validatePathComponent(datasetName, "dataset name"); err != nil {
		return "", err
	}
	ext, err := normalizeExt(ext)
	if err != nil {
		return "", err
	}
	return path.Join(datasetName, "latest."+ext), nil
}

func normalizeExt(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch ext {
	case "csv", "parquet":
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported dataset extension: %q", ext)
	}
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
