package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/pdnchat/pdnchat/internal/observability"
	"github.com/pdnchat/pdnchat/internal/storage"
)

// Fetcher mirrors one object-store key into a local file that the query
// engine reads. Replacement is atomic: the new file is written next to the
// destination and renamed over it.
type Fetcher struct {
	store    storage.ObjectStore
	key      string
	destPath string

	mu       sync.Mutex
	lastETag string
	lastSync time.Time
}

func NewFetcher(store storage.ObjectStore, key, cacheDir string) (*Fetcher, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if key == "" {
		return nil, fmt.Errorf("object key is required")
	}
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	if _, err := FormatFromPath(key); err != nil {
		return nil, err
	}
	return &Fetcher{
		store:    store,
		key:      key,
		destPath: filepath.Join(cacheDir, "pdnchat-"+path.Base(key)),
	}, nil
}

// Path is the local file the fetcher maintains.
func (f *Fetcher) Path() string {
	return f.destPath
}

// LastSync returns when the local copy was last confirmed current.
func (f *Fetcher) LastSync() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSync
}

// Sync downloads the object unless the store reports it unchanged since the
// last download. It reports whether the local file changed.
func (f *Fetcher) Sync(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	etag := f.lastETag
	if _, err := os.Stat(f.destPath); err != nil {
		etag = ""
	}
	object, err := f.store.Open(ctx, f.key, etag)
	if errors.Is(err, storage.ErrNotModified) {
		f.lastSync = time.Now().UTC()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get dataset %q: %w", f.key, err)
	}
	defer func() { _ = object.Close() }()

	if err := writeFileAtomic(f.destPath, object); err != nil {
		return false, err
	}
	f.lastETag = object.Info.ETag
	f.lastSync = time.Now().UTC()
	return true, nil
}

// Refresh calls Sync every interval until ctx is cancelled. Failures are
// logged and the previous local copy keeps serving.
func (f *Fetcher) Refresh(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := f.Sync(ctx)
			observability.ObserveDatasetRefresh(err, time.Now())
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				logger.Warn("dataset refresh failed", slog.String("key", f.key), slog.Any("error", err))
				continue
			}
			if changed {
				logger.Info("dataset refreshed", slog.String("key", f.key), slog.String("path", f.destPath))
			}
		}
	}
}

func writeFileAtomic(dest string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dataset cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pdnchat-download-*")
	if err != nil {
		return fmt.Errorf("create temp dataset file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("download dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp dataset file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return fmt.Errorf("replace dataset file: %w", err)
	}
	return nil
}

// Publish uploads a local dataset file to key.
func Publish(ctx context.Context, store storage.ObjectStore, key, localPath string) (storage.ObjectInfo, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("open dataset file: %w", err)
	}
	defer func() { _ = file.Close() }()
	stat, err := file.Stat()
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat dataset file: %w", err)
	}
	info, err := store.Put(ctx, key, file, stat.Size(), storage.PutOptions{})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("publish dataset: %w", err)
	}
	return info, nil
}
