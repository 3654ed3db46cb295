package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdnchat/pdnchat/internal/config"
	"github.com/pdnchat/pdnchat/internal/dataset"
	"github.com/pdnchat/pdnchat/internal/demo"
	"github.com/pdnchat/pdnchat/internal/observability"
	"github.com/pdnchat/pdnchat/internal/storage"
	s3store "github.com/pdnchat/pdnchat/internal/storage/s3"
)

const datasetName = "blood_donation_events"

type importOptions struct {
	Input    string
	Output   string
	Lenient  bool
	Upload   bool
	Key      string
	Snapshot bool
	// DemoDays > 0 synthesizes events starting today instead of reading Input.
	DemoDays int
	DemoSeed int64
	Now      func() time.Time
}

type importReport struct {
	Events       int
	Skipped      []dataset.RowError
	MaxDate      *time.Time
	UploadedKeys []string
}

func main() {
	opts := importOptions{Now: time.Now}
	flag.StringVar(&opts.Input, "in", "", "scraped events CSV (- for stdin)")
	flag.StringVar(&opts.Output, "out", "blood_donation_events.csv", "canonical output file (.csv or .parquet)")
	flag.BoolVar(&opts.Lenient, "lenient", false, "skip malformed rows instead of failing")
	flag.BoolVar(&opts.Upload, "upload", false, "publish the output file to the object store")
	flag.StringVar(&opts.Key, "key", "", "object key for -upload (defaults to PDNCHAT_DATASET_OBJECT_KEY or the latest key)")
	flag.BoolVar(&opts.Snapshot, "snapshot", false, "with -upload, also keep a dated snapshot copy")
	flag.IntVar(&opts.DemoDays, "demo-days", 0, "generate synthetic events for this many days instead of reading -in")
	flag.Int64Var(&opts.DemoSeed, "demo-seed", 1, "seed for -demo-days")
	flag.Parse()

	cfg, err := config.LoadFromEnv("pdnchat-import")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)
	if opts.Key == "" {
		opts.Key = cfg.Dataset.ObjectKey
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var store storage.ObjectStore
	if opts.Upload {
		objectStore, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		store = objectStore
	}

	report, err := importDataset(ctx, opts, os.Stdin, store)
	if err != nil {
		logger.Error("import failed", slog.Any("error", err))
		os.Exit(1)
	}
	for _, skipped := range report.Skipped {
		logger.Warn("skipped row", slog.Int("line", skipped.Line), slog.Any("error", skipped.Err))
	}
	attrs := []any{
		slog.String("output", opts.Output),
		slog.Int("events", report.Events),
		slog.Int("skipped", len(report.Skipped)),
		slog.Any("uploaded", report.UploadedKeys),
	}
	if report.MaxDate != nil {
		attrs = append(attrs, slog.String("max_date", report.MaxDate.Format(dataset.DateLayout)))
	}
	logger.Info("dataset imported", attrs...)
}

// importDataset normalizes opts.Input into opts.Output and, when requested,
// publishes the result.
func importDataset(ctx context.Context, opts importOptions, stdin io.Reader, store storage.ObjectStore) (importReport, error) {
	if strings.TrimSpace(opts.Input) == "" && opts.DemoDays <= 0 {
		return importReport{}, fmt.Errorf("-in is required")
	}
	format, err := dataset.FormatFromPath(opts.Output)
	if err != nil {
		return importReport{}, err
	}
	if opts.Upload && store == nil {
		return importReport{}, fmt.Errorf("object store is required for upload")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	read, err := readEvents(opts, stdin)
	if err != nil {
		return importReport{}, err
	}
	if len(read.Events) == 0 {
		return importReport{}, fmt.Errorf("no events found in %s", opts.Input)
	}

	if err := writeOutput(opts.Output, format, read.Events); err != nil {
		return importReport{}, err
	}
	report := importReport{
		Events:  len(read.Events),
		Skipped: read.Skipped,
		MaxDate: dataset.MaxDate(read.Events),
	}
	if !opts.Upload {
		return report, nil
	}

	ext := strings.TrimPrefix(filepath.Ext(opts.Output), ".")
	keys := make([]string, 0, 2)
	key := opts.Key
	if key == "" {
		key, err = storage.BuildLatestKey(datasetName, ext)
		if err != nil {
			return report, err
		}
	}
	keys = append(keys, key)
	if opts.Snapshot {
		snapshotKey, err := storage.BuildSnapshotKey(datasetName, ext, opts.Now())
		if err != nil {
			return report, err
		}
		keys = append(keys, snapshotKey)
	}
	for _, key := range keys {
		if _, err := dataset.Publish(ctx, store, key, opts.Output); err != nil {
			return report, err
		}
		report.UploadedKeys = append(report.UploadedKeys, key)
	}
	return report, nil
}

func readEvents(opts importOptions, stdin io.Reader) (dataset.ReadResult, error) {
	if opts.DemoDays > 0 {
		events := demo.NewGenerator(opts.DemoSeed).Events(opts.Now(), opts.DemoDays)
		return dataset.ReadResult{Events: events}, nil
	}
	source := stdin
	if opts.Input != "-" {
		file, err := os.Open(opts.Input)
		if err != nil {
			return dataset.ReadResult{}, fmt.Errorf("open source: %w", err)
		}
		defer func() { _ = file.Close() }()
		source = file
	}
	return dataset.ReadCSV(source, dataset.ReadOptions{Lenient: opts.Lenient})
}

func writeOutput(path string, format dataset.Format, events []dataset.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	switch format {
	case dataset.FormatParquet:
		err = dataset.WriteParquet(file, events)
	default:
		err = dataset.WriteCSV(file, events)
	}
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	return err
}
