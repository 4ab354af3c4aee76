package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`

	Course struct {
		ID       string `json:"id"`
		CameraID string `json:"camera_id"`
		MeetURL  string `json:"meet_url"`
		Title    string `json:"title"`
	} `json:"course"`

	Backend struct {
		BaseURL      string `json:"base_url"`
		BypassHeader string `json:"bypass_header"`
		TimeoutMS    int    `json:"timeout_ms"`
	} `json:"backend"`

	Capture struct {
		IntervalMS  int      `json:"interval_ms"`
		JPEGQuality int      `json:"jpeg_quality"`
		CropSize    int      `json:"crop_size"`
		MinWidth    int      `json:"min_width"`
		MinHeight   int      `json:"min_height"`
		StreamURLs  []string `json:"stream_urls"`
		Device      string   `json:"device"`
		FFmpegPath  string   `json:"ffmpeg_path"`
	} `json:"capture"`

	Engage struct {
		IdentifyIntervalMS   int  `json:"identify_interval_ms"`
		InferIntervalMS      int  `json:"infer_interval_ms"`
		ReidentifyIntervalMS int  `json:"reidentify_interval_ms"`
		ClearIdentityOnStop  bool `json:"clear_identity_on_stop"`
	} `json:"engage"`

	Alert struct {
		Threshold    float64 `json:"threshold"`
		CooldownMS   int     `json:"cooldown_ms"`
		SoundCommand string  `json:"sound_command"`
	} `json:"alert"`

	Telegram struct {
		Token  string `json:"token"`
		ChatID int64  `json:"chat_id"`
	} `json:"telegram"`

	MQTT struct {
		Broker   string `json:"broker"`
		Topic    string `json:"topic"`
		ClientID string `json:"client_id"`
	} `json:"mqtt"`

	Overlay struct {
		Listen   string `json:"listen"`
		LogLines int    `json:"log_lines"`
	} `json:"overlay"`

	Lifecycle struct {
		GraceMS     int `json:"grace_ms"`
		PollMS      int `json:"poll_ms"`
		DebounceMS  int `json:"debounce_ms"`
		IntentTTLMS int `json:"intent_ttl_ms"`
	} `json:"lifecycle"`
}

// Duration accessors so callers don't juggle millisecond ints.

func (c *Config) CaptureInterval() time.Duration  { return ms(c.Capture.IntervalMS) }
func (c *Config) IdentifyInterval() time.Duration { return ms(c.Engage.IdentifyIntervalMS) }
func (c *Config) InferInterval() time.Duration    { return ms(c.Engage.InferIntervalMS) }
func (c *Config) ReidentifyInterval() time.Duration {
	return ms(c.Engage.ReidentifyIntervalMS)
}
func (c *Config) AlertCooldown() time.Duration  { return ms(c.Alert.CooldownMS) }
func (c *Config) BackendTimeout() time.Duration { return ms(c.Backend.TimeoutMS) }
func (c *Config) LifecycleGrace() time.Duration { return ms(c.Lifecycle.GraceMS) }
func (c *Config) LifecyclePoll() time.Duration  { return ms(c.Lifecycle.PollMS) }
func (c *Config) IntentDebounce() time.Duration { return ms(c.Lifecycle.DebounceMS) }
func (c *Config) IntentTTL() time.Duration      { return ms(c.Lifecycle.IntentTTLMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func Load(path string) (*Config, error) {
	// A .env next to the binary (or cwd) is optional.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".classwatch"),
		LogLevel: "info",
	}
	cfg.Course.ID = "CSC4400"
	cfg.Course.CameraID = "MEET_TAB"
	cfg.Backend.BaseURL = "http://localhost:5000"
	cfg.Backend.BypassHeader = "ngrok-skip-browser-warning"
	cfg.Backend.TimeoutMS = 15000
	cfg.Capture.IntervalMS = 2000
	cfg.Capture.JPEGQuality = 80
	cfg.Capture.CropSize = 512
	cfg.Capture.MinWidth = 200
	cfg.Capture.MinHeight = 150
	cfg.Capture.Device = "/dev/video0"
	cfg.Capture.FFmpegPath = "ffmpeg"
	cfg.Engage.IdentifyIntervalMS = 5000
	cfg.Engage.InferIntervalMS = 3000
	cfg.Engage.ReidentifyIntervalMS = 60000
	cfg.Engage.ClearIdentityOnStop = true
	cfg.Alert.Threshold = 0.70
	cfg.Alert.CooldownMS = 30000
	cfg.MQTT.Topic = "classwatch/events"
	cfg.MQTT.ClientID = "classwatch"
	cfg.Overlay.Listen = "127.0.0.1:8799"
	cfg.Overlay.LogLines = 30
	cfg.Lifecycle.GraceMS = 1500
	cfg.Lifecycle.PollMS = 800
	cfg.Lifecycle.DebounceMS = 1200
	cfg.Lifecycle.IntentTTLMS = 15000

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if url := os.Getenv("CLASSWATCH_BACKEND_URL"); url != "" {
		cfg.Backend.BaseURL = url
	}
	if course := os.Getenv("CLASSWATCH_COURSE_ID"); course != "" {
		cfg.Course.ID = course
	}
	if camera := os.Getenv("CLASSWATCH_CAMERA_ID"); camera != "" {
		cfg.Course.CameraID = camera
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		cfg.MQTT.Broker = broker
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
