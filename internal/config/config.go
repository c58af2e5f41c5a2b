// Package config loads testrun.toml.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultFileName is the config file looked up in the working directory.
	DefaultFileName = "testrun.toml"
	// StateDir holds the history database and the debug log by default.
	StateDir = ".testrun"
)

//go:embed templates/config.tmpl
var configTemplateText string

// Config is the contents of testrun.toml. The zero value is usable; every
// accessor falls back to a default.
type Config struct {
	Upload  UploadConfig  `toml:"upload"`
	Parser  ParserConfig  `toml:"parser"`
	History HistoryConfig `toml:"history"`
	Log     LogConfig     `toml:"log"`
	Watch   WatchConfig   `toml:"watch"`
}

// UploadConfig configures the results service.
type UploadConfig struct {
	// APIURL is used when the command line omits it.
	APIURL string `toml:"api_url"`
	// TestType defaults to "gvisor".
	TestType string `toml:"test_type"`
	// TimeoutSeconds defaults to 30.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// APIKeyEnv names the variable holding the token. Defaults to API_KEY.
	APIKeyEnv string `toml:"api_key_env"`
}

// GetTestType returns the configured test type or "gvisor".
func (u *UploadConfig) GetTestType() string {
	if u.TestType == "" {
		return "gvisor"
	}
	return u.TestType
}

// GetTimeout returns the upload timeout.
func (u *UploadConfig) GetTimeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// GetAPIKeyEnv returns the token variable name.
func (u *UploadConfig) GetAPIKeyEnv() string {
	if u.APIKeyEnv == "" {
		return "API_KEY"
	}
	return u.APIKeyEnv
}

// ParserConfig tunes log parsing.
type ParserConfig struct {
	// Dialect forces one log format. Empty means auto-detect.
	Dialect string `toml:"dialect"`
	// NarrowSlack is how many trailing characters may follow a diagnostic
	// block before the whole failure window is used instead. Defaults to 50.
	NarrowSlack *int `toml:"narrow_slack"`
}

// GetNarrowSlack returns the configured slack or 50.
func (p *ParserConfig) GetNarrowSlack() int {
	if p.NarrowSlack == nil || *p.NarrowSlack < 0 {
		return 50
	}
	return *p.NarrowSlack
}

// HistoryConfig controls the local run history.
type HistoryConfig struct {
	// Enabled defaults to true.
	Enabled *bool `toml:"enabled"`
	// Path defaults to .testrun/history.db.
	Path string `toml:"path"`
}

// IsEnabled reports whether runs are recorded.
func (h *HistoryConfig) IsEnabled() bool {
	if h.Enabled == nil {
		return true
	}
	return *h.Enabled
}

// GetPath returns the history database path.
func (h *HistoryConfig) GetPath() string {
	if h.Path == "" {
		return filepath.Join(StateDir, "history.db")
	}
	return h.Path
}

// LogConfig controls the debug log.
type LogConfig struct {
	Debug bool `toml:"debug"`
	// Dir defaults to .testrun. Set to "-" to disable the log file.
	Dir string `toml:"dir"`
}

// GetDir returns the log directory, or "" when logging is disabled.
func (l *LogConfig) GetDir() string {
	switch l.Dir {
	case "":
		return StateDir
	case "-":
		return ""
	default:
		return l.Dir
	}
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	// Patterns are file name globs. Defaults to *.log and *.txt.
	Patterns []string `toml:"patterns"`
	// DebounceMS is how long a file must be quiet before it is parsed. Defaults to 500.
	DebounceMS int `toml:"debounce_ms"`
}

// GetPatterns returns the file name globs.
func (w *WatchConfig) GetPatterns() []string {
	if len(w.Patterns) == 0 {
		return []string{"*.log", "*.txt"}
	}
	return w.Patterns
}

// GetDebounce returns the quiet period.
func (w *WatchConfig) GetDebounce() time.Duration {
	if w.DebounceMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// LoadConfig reads the config at path.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// Load reads path, or DefaultFileName when path is empty. A missing default
// file yields an empty Config; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// configTemplate renders a documented config file.
var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"tomlString": tomlString,
}).Parse(configTemplateText))

// tomlString quotes s as a TOML basic string.
func tomlString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

// GenerateDocumentedConfig returns c as TOML with every option explained.
func (c *Config) GenerateDocumentedConfig() (string, error) {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return buf.String(), nil
}

// SaveDocumentedConfig writes a documented config to path. Existing files are
// left alone unless force is set.
func (c *Config) SaveDocumentedConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	content, err := c.GenerateDocumentedConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
