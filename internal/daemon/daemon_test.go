package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvrmanager/internal/config"
	"dvrmanager/internal/daemon"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*daemon.Daemon, *config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.WatchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	d, err := daemon.New(cfg, configPath, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, cfg, configPath
}

func TestDaemonStartStopLifecycle(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	ctx := context.Background()

	if got := d.State(); got != daemon.StateStopped {
		t.Fatalf("initial state = %q", got)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := d.State(); got != daemon.StateRunning {
		t.Fatalf("state after start = %q", got)
	}

	d.Stop("test")
	if got := d.State(); got != daemon.StateStopped {
		t.Fatalf("state after stop = %q", got)
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	d, cfg, configPath := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop("test")

	secondStore, err := queue.OpenPath(queue.DatabasePath(cfg))
	if err != nil {
		t.Fatalf("open second store: %v", err)
	}
	defer secondStore.Close()

	second, err := daemon.New(cfg, configPath, secondStore, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop("test")
		t.Fatal("second instance acquired the lock")
	}
}

func TestDaemonReloadKeepsConfigOnBadFile(t *testing.T) {
	d, cfg, configPath := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop("test")

	if err := os.WriteFile(configPath, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.Reload(ctx); err == nil {
		t.Fatal("expected reload of invalid config to fail")
	}
	if got := d.State(); got != daemon.StateRunning {
		t.Fatalf("state after failed reload = %q", got)
	}
	if d.Config() != cfg {
		t.Fatal("configuration replaced despite failed reload")
	}
}

func TestDaemonReloadRejectsLogDirChange(t *testing.T) {
	d, cfg, configPath := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop("test")

	moved := cfg
	contents := "[paths]\n" +
		"watch_dir = \"" + cfg.Paths.WatchDir + "\"\n" +
		"tv_dir = \"" + cfg.Paths.TVDir + "\"\n" +
		"movies_dir = \"" + cfg.Paths.MoviesDir + "\"\n" +
		"quarantine_dir = \"" + cfg.Paths.QuarantineDir + "\"\n" +
		"log_dir = \"" + filepath.Join(testsupport.BaseDir(moved), "elsewhere") + "\"\n" +
		"[identity.tmdb]\n" +
		"api_key = \"test\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := d.Reload(ctx); err == nil {
		t.Fatal("expected reload with moved database to be rejected")
	}
	if got := d.State(); got != daemon.StateRunning {
		t.Fatalf("state after rejected reload = %q", got)
	}
}

func TestDaemonStartPrunesAgedLogs(t *testing.T) {
	d, cfg, _ := newTestDaemon(t)
	ctx := context.Background()

	old := filepath.Join(cfg.Paths.LogDir, "dvr-manager-2025.log")
	if err := os.WriteFile(old, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	aged := time.Now().AddDate(0, 0, -(cfg.Logging.RetentionDays + 30))
	if err := os.Chtimes(old, aged, aged); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(cfg.Paths.LogDir, "dvr-manager-recent.log")
	if err := os.WriteFile(fresh, []byte("current"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The active log is spared by name even when its mtime is ancient.
	active := filepath.Join(cfg.Paths.LogDir, "dvr-manager.log")
	if err := os.WriteFile(active, []byte("live"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(active, aged, aged); err != nil {
		t.Fatal(err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop("test")

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("aged log still present: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("recent log removed: %v", err)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("active log removed: %v", err)
	}
}
