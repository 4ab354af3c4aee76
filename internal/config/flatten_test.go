package config

import (
	"path/filepath"
	"testing"
)

func TestFlattenUnflatten(t *testing.T) {
	nested := map[string]any{
		"backend": map[string]any{
			"base_url":   "http://localhost:5000",
			"timeout_ms": float64(15000),
		},
		"log_level": "info",
	}

	flat := Flatten(nested)
	if flat["backend.base_url"] != "http://localhost:5000" {
		t.Errorf("unexpected flatten result: %v", flat)
	}
	if flat["log_level"] != "info" {
		t.Errorf("expected top-level key preserved, got %v", flat["log_level"])
	}

	back := Unflatten(flat)
	inner, ok := back["backend"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested backend map, got %T", back["backend"])
	}
	if inner["timeout_ms"] != float64(15000) {
		t.Errorf("roundtrip lost value: %v", inner["timeout_ms"])
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"telegram.token":   "123456:ABCDEF",
		"backend.base_url": "http://localhost:5000",
	}
	masked := MaskSecrets(flat)
	if masked["telegram.token"] != "***CDEF" {
		t.Errorf("expected masked token, got %v", masked["telegram.token"])
	}
	if masked["backend.base_url"] != "http://localhost:5000" {
		t.Errorf("expected non-secret untouched, got %v", masked["backend.base_url"])
	}

	empty := MaskSecrets(map[string]any{"telegram.token": ""})
	if empty["telegram.token"] != "" {
		t.Errorf("expected empty secret left empty, got %v", empty["telegram.token"])
	}
}

func TestGetSetValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "backend.base_url", "https://api.example"); err != nil {
		t.Fatal(err)
	}
	val, err := GetValue(path, "backend.base_url")
	if err != nil {
		t.Fatal(err)
	}
	if val != "https://api.example" {
		t.Errorf("expected updated value, got %v", val)
	}

	// Numeric values are stored as numbers, not strings.
	if err := SetValue(path, "alert.threshold", "0.8"); err != nil {
		t.Fatal(err)
	}
	val, err = GetValue(path, "alert.threshold")
	if err != nil {
		t.Fatal(err)
	}
	if val != float64(0.8) {
		t.Errorf("expected numeric 0.8, got %v (%T)", val, val)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != "https://api.example" || cfg.Alert.Threshold != 0.8 {
		t.Errorf("expected edits visible on reload, got %q / %v", cfg.Backend.BaseURL, cfg.Alert.Threshold)
	}
}

func TestSetValueUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "nope.nothing", "x"); err == nil {
		t.Error("expected unknown key rejected")
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("telegram.token") {
		t.Error("expected telegram.token secret")
	}
	if IsSecretKey("backend.base_url") {
		t.Error("expected backend.base_url not secret")
	}
}
