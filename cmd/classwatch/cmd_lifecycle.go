package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/classwatch/internal/config"
	"github.com/user/classwatch/internal/lifecycle"
	"github.com/user/classwatch/internal/overlay"
)

func init() {
	rootCmd.AddCommand(statusCmd, stopCmd, restartCmd)
}

// readPID reads the PID from the classwatch.pid file and validates the
// process exists by sending signal 0.
func readPID(cfg *config.Config) (int, error) {
	pidPath := filepath.Join(cfg.DataDir, "classwatch.pid")

	data, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no running daemon (PID file not found)")
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, fmt.Errorf("no running daemon (process %d not found)", pid)
	}

	return pid, nil
}

// signalDaemon delivers sig to the daemon identified by the PID file.
func signalDaemon(cfg *config.Config, sig syscall.Signal) (int, error) {
	pid, err := readPID(cfg)
	if err != nil {
		return 0, err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process: %w", err)
	}
	if err := proc.Signal(sig); err != nil {
		return 0, fmt.Errorf("send %s: %w", sig, err)
	}
	return pid, nil
}

// fetchOverlayStatus asks the daemon's overlay endpoint for its live status.
func fetchOverlayStatus(listen string) (*overlay.Status, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + listen + "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overlay status: HTTP %d", resp.StatusCode)
	}
	var status overlay.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode overlay status: %w", err)
	}
	return &status, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's capture status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		pid, err := readPID(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Daemon running (PID %d), overlay on http://%s.\n", pid, cfg.Overlay.Listen)

		status, err := fetchOverlayStatus(cfg.Overlay.Listen)
		if err != nil {
			return fmt.Errorf("overlay unreachable: %w", err)
		}
		if !status.Running {
			fmt.Fprintln(os.Stdout, "No capture run in progress.")
			return nil
		}
		who := status.Name
		if who == "" {
			who = "unidentified"
		}
		fmt.Fprintf(os.Stdout, "Capturing %s: state %s (score %.2f), idle %ds, tab %s.\n",
			who, status.State, status.Score, status.IdleSeconds, status.Tab)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		// Report what the stop interrupts, when the overlay is reachable.
		if status, err := fetchOverlayStatus(cfg.Overlay.Listen); err == nil && status.Running {
			fmt.Fprintf(os.Stdout, "Interrupting an active capture run (state %s).\n", status.State)
		}

		pid, err := signalDaemon(cfg, syscall.SIGTERM)
		if err != nil {
			return err
		}

		// An explicit stop also drops any persisted start intent so the next
		// daemon launch doesn't resume the run the user just ended.
		lifecycle.ClearStartIntent(cfg.DataDir)

		fmt.Fprintf(os.Stdout, "Sent SIGTERM to daemon (PID %d).\n", pid)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		pid, err := signalDaemon(cfg, syscall.SIGHUP)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Sent SIGHUP to daemon (PID %d); overlay comes back on http://%s.\n",
			pid, cfg.Overlay.Listen)
		return nil
	},
}
