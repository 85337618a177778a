package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/falk/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if !cfg.UseWebSockets() {
		t.Error("websockets should default to enabled")
	}
	if !cfg.LoadScripts() {
		t.Error("script loading should default to enabled")
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %q, want %q", cfg.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.Metrics.Namespace != DefaultMetricsNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultMetricsNamespace)
	}
	if cfg.Tokens == nil {
		t.Error("Tokens should be initialized")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.UseWebSockets() || cfg.Path() != "" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configJSON := `{
  "url": "http://localhost:8000/",
  "websockets": false,
  "initialCallbacks": [["#clock", "tick", {"step": 1}, "1s"], ["root", "load"]],
  "tokens": {"root": "t-root"},
  "headers": {"Cookie": "session=abc"},
  "requestTimeout": "2s",
  "assets": {"loadScripts": false},
  "log": {"level": "debug", "format": "json"}
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	if cfg.URL != "http://localhost:8000/" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.UseWebSockets() {
		t.Error("websockets should be disabled")
	}
	if cfg.LoadScripts() {
		t.Error("script loading should be disabled")
	}
	if len(cfg.InitialCallbacks) != 2 || cfg.InitialCallbacks[0].Name != "tick" || !cfg.InitialCallbacks[0].IsSelector() {
		t.Errorf("InitialCallbacks = %+v", cfg.InitialCallbacks)
	}
	if cfg.Tokens["root"] != "t-root" {
		t.Errorf("Tokens = %v", cfg.Tokens)
	}
	if cfg.HTTPHeader()["Cookie"][0] != "session=abc" {
		t.Errorf("HTTPHeader = %v", cfg.HTTPHeader())
	}
	if cfg.RequestTimeoutDuration() != 2*time.Second {
		t.Errorf("RequestTimeoutDuration = %v", cfg.RequestTimeoutDuration())
	}
	if cfg.DialTimeoutDuration() != 5*time.Second {
		t.Errorf("DialTimeoutDuration = %v", cfg.DialTimeoutDuration())
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Dir = %q, want %q", cfg.Dir(), tmpDir)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(configPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "E041") {
		t.Errorf("Expected E041 error, got: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, errors.ErrConfig) {
		t.Errorf("err = %v, want config error", err)
	}
}

func TestSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)

	cfg := New()
	cfg.URL = "https://example.com/app"
	cfg.SetWebSockets(false)

	if err := cfg.Save(); err == nil {
		t.Error("Expected error when saving without path")
	}
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.URL != "https://example.com/app" || loaded.UseWebSockets() {
		t.Errorf("loaded = %+v", loaded)
	}

	loaded.RequestTimeout = "10s"
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	reloaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.RequestTimeout != "10s" {
		t.Errorf("RequestTimeout = %q", reloaded.RequestTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"relative url", func(c *Config) { c.URL = "/page" }},
		{"ftp url", func(c *Config) { c.URL = "ftp://host/" }},
		{"bad request timeout", func(c *Config) { c.RequestTimeout = "soon" }},
		{"bad dial timeout", func(c *Config) { c.DialTimeout = "-1s" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, errors.ErrConfig) {
				t.Errorf("Validate() = %v, want config error", err)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("output = %s", out)
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := FindProjectRoot(nested); err == nil {
		t.Error("expected error without falk.json")
	}

	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	found, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	// TempDir may sit behind a symlink; compare resolved paths.
	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(found)
	if got != want {
		t.Errorf("FindProjectRoot = %q, want %q", found, root)
	}
}
