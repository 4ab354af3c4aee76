package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/classwatch/internal/alert"
	"github.com/user/classwatch/internal/backend"
	"github.com/user/classwatch/internal/capture"
	"github.com/user/classwatch/internal/engage"
	"github.com/user/classwatch/internal/lifecycle"
	"github.com/user/classwatch/internal/monitor"
	"github.com/user/classwatch/internal/overlay"
	"github.com/user/classwatch/internal/report"
	"github.com/user/classwatch/internal/schedule"
	"github.com/user/classwatch/internal/session"
	"github.com/user/classwatch/internal/state"
	"github.com/user/classwatch/internal/types"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the classwatch daemon",
	RunE:  runWatch,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "classwatch.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backend client and session manager
	api := backend.New(cfg.Backend.BaseURL, cfg.Backend.BypassHeader, cfg.BackendTimeout())
	sessions := session.NewManager(api, types.SessionRequest{
		CourseID: types.CourseID(cfg.Course.ID),
		MeetURL:  cfg.Course.MeetURL,
		Title:    cfg.Course.Title,
	})

	// Event sinks: local journal, plus MQTT mirror when a broker is set
	journal := state.NewJournal(cfg.DataDir)
	sinks := []types.EventSink{journal}
	if cfg.MQTT.Broker != "" {
		mqttSink, err := report.NewMQTTSink(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			slog.Warn("mqtt mirror disabled", "error", err)
		} else {
			defer mqttSink.Close()
			sinks = append(sinks, mqttSink)
			slog.Info("mqtt mirror enabled", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
		}
	}

	// Overlay hub doubles as the display
	hub := overlay.NewHub(cfg.Overlay.LogLines)

	// Alert notifiers
	notifiers := []types.Notifier{alert.NewSound(cfg.Alert.SoundCommand)}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := alert.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			slog.Warn("telegram alerts disabled", "error", err)
		} else {
			notifiers = append(notifiers, tg)
			slog.Info("telegram alerts enabled")
		}
	}
	alerter := alert.New(cfg.Alert.Threshold, cfg.AlertCooldown(), notifiers...)

	// Reporter needs the identity resolved by the engage client, which in
	// turn reports through the reporter; bind the identity lookup late.
	var client *engage.Client
	reporter := report.New(api, sessions, types.CameraID(cfg.Course.CameraID), func() types.Identity {
		if client == nil {
			return types.Identity{}
		}
		return client.Identity()
	}, sinks...)
	idle := report.NewIdleMonitor(reporter, hub)

	client = engage.New(api, sessions, reporter, alerter, hub, types.CameraID(cfg.Course.CameraID), engage.Options{
		IdentifyInterval:    cfg.IdentifyInterval(),
		InferInterval:       cfg.InferInterval(),
		ReidentifyInterval:  cfg.ReidentifyInterval(),
		ClearIdentityOnStop: cfg.Engage.ClearIdentityOnStop,
	})

	// Capture scheduler
	pick := func(ctx context.Context) (capture.Source, error) {
		return capture.PickSource(ctx, capture.PickOptions{
			StreamURLs:   cfg.Capture.StreamURLs,
			MinWidth:     cfg.Capture.MinWidth,
			MinHeight:    cfg.Capture.MinHeight,
			ProbeTimeout: 3 * time.Second,
			FFmpegPath:   cfg.Capture.FFmpegPath,
			Device:       cfg.Capture.Device,
		})
	}
	sched := capture.NewScheduler(capture.Options{
		Interval: cfg.CaptureInterval(),
		CropSize: cfg.Capture.CropSize,
		Quality:  cfg.Capture.JPEGQuality,
	}, pick, client.OnFrame)

	mon := monitor.New(api, sched, client, reporter, idle, sessions, hub)

	// Lifecycle controller with the stream probe as in-call heuristic
	detector := lifecycle.NewProbeDetector(cfg.Capture.StreamURLs, 2*time.Second)
	ctrl := lifecycle.NewController(mon, detector, lifecycle.Options{
		Grace:     cfg.LifecycleGrace(),
		Poll:      cfg.LifecyclePoll(),
		Debounce:  cfg.IntentDebounce(),
		IntentDir: cfg.DataDir,
		IntentTTL: cfg.IntentTTL(),
	})

	// Overlay signals feed idle reset, tab telemetry, and the lifecycle
	hub.SetHandlers(overlay.SignalHandlers{
		Activity: idle.Reset,
		Visibility: func(visible bool) {
			status := "here"
			if !visible {
				status = "away"
			}
			hub.SetTab(status)
			eventType := types.EventTabBack
			if !visible {
				eventType = types.EventTabAway
			}
			reporter.ReportSignal(ctx, eventType, nil)
		},
		Click: ctrl.HandleClick,
		Start: func() {
			if err := mon.Start(ctx); err != nil {
				slog.Warn("manual start failed", "error", err)
			}
		},
		Stop: mon.Stop,
	})

	go ctrl.Run(ctx)

	// Class timetable: arm monitoring for the duration of each window
	timetable := state.NewTimetableStore(filepath.Join(cfg.DataDir, "timetable.json"))
	sched2 := schedule.New(timetable, func(window *state.ClassWindow, duration time.Duration) {
		if err := mon.Start(ctx); err != nil {
			slog.Warn("scheduled start failed", "name", window.Name, "error", err)
			return
		}
		time.AfterFunc(duration, mon.Stop)
	})
	if err := sched2.Start(); err != nil {
		return fmt.Errorf("start timetable scheduler: %w", err)
	}
	defer sched2.Stop()

	// Overlay HTTP server
	overlaySrv := overlay.NewServer(hub)
	httpServer := &http.Server{
		Addr:    cfg.Overlay.Listen,
		Handler: overlaySrv,
	}
	go func() {
		slog.Info("overlay server started", "listen", cfg.Overlay.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("overlay server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	hub.Logf("Ready. Detection will start when you join the meeting.")
	slog.Info("classwatch started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"course_id", cfg.Course.ID,
		"camera_id", cfg.Course.CameraID,
		"backend", cfg.Backend.BaseURL,
		"capture_interval", cfg.CaptureInterval(),
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			cancel()
			ctrl.Shutdown()
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		cancel()
		ctrl.Shutdown()
		return nil
	}
}
