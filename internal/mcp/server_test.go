package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/sampling-paradigm/internal/store"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), store.DirName)

	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		DataDir: dataDir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, dataDir
}

func TestNewServer(t *testing.T) {
	server, dataDir := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.cfg == nil {
		t.Error("Server.cfg is nil")
	}
	if _, err := os.Stat(filepath.Join(dataDir, store.DBFile)); err != nil {
		t.Errorf("database not created: %v", err)
	}
	for _, name := range []string{"spgen_enumerate", "spgen_schedule", "spgen_reward_lists", "spgen_coverage", "spgen_runs", "spgen_export"} {
		if server.toolLimiters[name] == nil {
			t.Errorf("no rate limiter for %s", name)
		}
	}
}

func TestClose(t *testing.T) {
	server, _ := setupTestServer(t)

	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestServer_PoolCached(t *testing.T) {
	server, _ := setupTestServer(t)

	a := server.pool(0.9)
	b := server.pool(0.90000000000000002)
	if len(a) == 0 {
		t.Fatal("empty pool for 0.9")
	}
	if &a[0] != &b[0] {
		t.Error("pool for the same ev_diff was enumerated twice")
	}
}

func TestServer_PoolSkipsEmpty(t *testing.T) {
	server, _ := setupTestServer(t)

	if p := server.pool(9.5); len(p) != 0 {
		t.Fatalf("pool(9.5) has %d settings, want none", len(p))
	}
	if len(server.pools) != 0 {
		t.Errorf("empty pool was cached: %d entries", len(server.pools))
	}
}
