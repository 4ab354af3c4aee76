package main

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/classwatch/internal/config"
	"github.com/user/classwatch/internal/overlay"
	"github.com/user/classwatch/internal/types"
)

func TestFetchOverlayStatus(t *testing.T) {
	hub := overlay.NewHub(10)
	hub.SetRunning(true)
	hub.SetState(types.StateAwake, 0.84)
	srv := httptest.NewServer(overlay.NewServer(hub))
	defer srv.Close()

	listen := strings.TrimPrefix(srv.URL, "http://")
	status, err := fetchOverlayStatus(listen)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Running || status.State != types.StateAwake || status.Score != 0.84 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestFetchOverlayStatusUnreachable(t *testing.T) {
	if _, err := fetchOverlayStatus("127.0.0.1:1"); err == nil {
		t.Error("expected error for unreachable overlay")
	}
}

func TestReadPID(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}

	if _, err := readPID(cfg); err == nil {
		t.Error("expected error without a PID file")
	}

	// Our own PID is always alive.
	pidPath := filepath.Join(cfg.DataDir, "classwatch.pid")
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	pid, err := readPID(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected own PID, got %d", pid)
	}

	if err := os.WriteFile(pidPath, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPID(cfg); err == nil {
		t.Error("expected error for malformed PID file")
	}
}
