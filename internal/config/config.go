package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/falk/internal/duration"
	"github.com/vango-dev/falk/internal/errors"
	"github.com/vango-dev/falk/pkg/protocol"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "falk.json"

	// DefaultRequestTimeout bounds one mutation round trip.
	DefaultRequestTimeout = "30s"

	// DefaultDialTimeout bounds the WebSocket opening handshake.
	DefaultDialTimeout = "5s"

	// DefaultMetricsNamespace prefixes every metric name.
	DefaultMetricsNamespace = "falk"

	// DefaultLogLevel is the default slog level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default slog handler.
	DefaultLogFormat = "text"
)

// Config represents the complete falk.json configuration.
type Config struct {
	// URL is the page URL. The CLI argument overrides it.
	URL string `json:"url,omitempty"`

	// WebSockets enables the persistent channel. Defaults to true.
	WebSockets *bool `json:"websockets,omitempty"`

	// InitialCallbacks run once after startup.
	InitialCallbacks []protocol.Callback `json:"initialCallbacks,omitempty"`

	// Tokens seed the token store in addition to data-falk-token attributes.
	Tokens map[string]string `json:"tokens,omitempty"`

	// Headers are sent with every request (page load, mutations, handshake).
	Headers map[string]string `json:"headers,omitempty"`

	// RequestTimeout bounds one mutation round trip (e.g., "30s").
	RequestTimeout string `json:"requestTimeout,omitempty"`

	// DialTimeout bounds the WebSocket handshake (e.g., "5s").
	DialTimeout string `json:"dialTimeout,omitempty"`

	// Assets contains asset loading configuration.
	Assets AssetsConfig `json:"assets,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// AssetsConfig contains asset loading configuration.
type AssetsConfig struct {
	// LoadScripts waits for new external scripts before patching.
	// Defaults to true.
	LoadScripts *bool `json:"loadScripts,omitempty"`
}

// MetricsConfig contains Prometheus configuration.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads falk.json from dir. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	if !Exists(dir) {
		return New(), nil
	}
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E041").
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Pass an existing file or omit --config to use defaults")
		}
		return nil, errors.New("E041").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E041").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E041").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E041").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.WebSockets == nil {
		c.WebSockets = boolPtr(true)
	}
	if c.Assets.LoadScripts == nil {
		c.Assets.LoadScripts = boolPtr(true)
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.DialTimeout == "" {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Tokens == nil {
		c.Tokens = make(map[string]string)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("E040").
				WithDetailf("url %q must be an absolute http(s) URL", c.URL)
		}
	}
	if _, err := duration.ParseString(c.RequestTimeout); err != nil {
		return errors.New("E040").WithDetail("requestTimeout").Wrap(err)
	}
	if _, err := duration.ParseString(c.DialTimeout); err != nil {
		return errors.New("E040").WithDetail("dialTimeout").Wrap(err)
	}
	for i, cb := range c.InitialCallbacks {
		if _, err := duration.Parse(cb.Delay); err != nil {
			return errors.New("E040").WithDetailf("initialCallbacks[%d] delay", i).Wrap(err)
		}
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		return errors.New("E040").
			WithDetailf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.New("E040").
			WithDetailf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// UseWebSockets reports whether the persistent channel is enabled.
func (c *Config) UseWebSockets() bool {
	return c.WebSockets == nil || *c.WebSockets
}

// SetWebSockets enables or disables the persistent channel.
func (c *Config) SetWebSockets(enabled bool) {
	c.WebSockets = boolPtr(enabled)
}

// LoadScripts reports whether the runtime waits for new external scripts.
func (c *Config) LoadScripts() bool {
	return c.Assets.LoadScripts == nil || *c.Assets.LoadScripts
}

// RequestTimeoutDuration returns RequestTimeout parsed. Call Validate first.
func (c *Config) RequestTimeoutDuration() time.Duration {
	d, _ := duration.ParseString(c.RequestTimeout)
	return d
}

// DialTimeoutDuration returns DialTimeout parsed. Call Validate first.
func (c *Config) DialTimeoutDuration() time.Duration {
	d, _ := duration.ParseString(c.DialTimeout)
	return d
}

// HTTPHeader returns Headers as an http.Header-compatible map.
func (c *Config) HTTPHeader() map[string][]string {
	h := make(map[string][]string, len(c.Headers))
	for k, v := range c.Headers {
		h[k] = []string{v}
	}
	return h
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Logger builds a slog logger writing to w per the log settings.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, ok := levels[strings.ToLower(c.Log.Level)]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Log.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// FindProjectRoot walks up directories to find the nearest falk.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E041").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest falk.json above the working
// directory, or the defaults if there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}

	return Load(root)
}

func boolPtr(b bool) *bool { return &b }
