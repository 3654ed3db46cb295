//go:build integration

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pdnchat/pdnchat/internal/config"
	"github.com/pdnchat/pdnchat/internal/storage"
)

func TestStoreRoundTripAgainstMinIO(t *testing.T) {
	endpoint := envOr("PDNCHAT_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("PDNCHAT_TEST_S3_ENDPOINT is not set")
	}

	cfg := config.ObjectStoreConfig{
		Endpoint:         endpoint,
		Region:           envOr("PDNCHAT_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("PDNCHAT_TEST_S3_BUCKET", "pdnchat-it"),
		AccessKeyID:      envOr("PDNCHAT_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("PDNCHAT_TEST_S3_SECRET_KEY", "miniostorage"),
		UseSSL:           false,
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	key := "blood_donation_events/latest.csv"
	payload := []byte("event_day,event_date\nSaturday,2025-12-20\n")

	if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	object, err := store.Open(ctx, key, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	readPayload, err := io.ReadAll(object)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	if err := object.Close(); err != nil {
		t.Fatalf("object.Close() error = %v", err)
	}
	if !bytes.Equal(readPayload, payload) {
		t.Fatalf("Open() payload = %q, want %q", string(readPayload), string(payload))
	}
	if object.Info.Size != int64(len(payload)) || object.Info.ContentType != "text/csv" {
		t.Fatalf("Open() info = %+v", object.Info)
	}

	if _, err := store.Open(ctx, key, object.Info.ETag); !errors.Is(err, storage.ErrNotModified) {
		t.Fatalf("conditional Open() error = %v, want ErrNotModified", err)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
