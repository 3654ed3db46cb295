//go:build integration

package redis

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pdnchat/pdnchat/internal/history"
	"github.com/pdnchat/pdnchat/internal/history/historytest"
)

func TestStoreConformanceAgainstRedis(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("PDNCHAT_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("PDNCHAT_TEST_REDIS_ADDR is not set")
	}

	historytest.Run(t, func(t *testing.T) history.Store {
		store, err := New(Config{
			Addr:      addr,
			KeyPrefix: fmt.Sprintf("pdnchat-it-%d:", time.Now().UnixNano()),
			TTL:       10 * time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
