package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up inside the base directory (~/.recall).
const FileName = "config.yaml"

// Config holds application configuration.
type Config struct {
	// DBPath is the capture database to open when no --db flag is given.
	DBPath string `yaml:"db_path,omitempty"`

	// ImageRoot is the image store directory. Empty means the ImageStore
	// directory next to the database file.
	ImageRoot string `yaml:"image_root,omitempty"`

	// ImageExtension is appended to an image token to form the file name.
	// Captures written by Recall itself use the bare token (""); exported
	// copies are often renamed to "{token}.jpeg". nil means the default.
	ImageExtension *string `yaml:"image_extension,omitempty"`

	// DisplayUTCOffset is the single fixed offset every timestamp is
	// rendered in, e.g. "+09:00", "-05:30" or "Z".
	DisplayUTCOffset string `yaml:"display_utc_offset,omitempty"`

	// PageSize is the default number of rows per page in capture listings.
	PageSize int `yaml:"page_size,omitempty"`

	Web WebConfig `yaml:"web,omitempty"`
	Log LogConfig `yaml:"log,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `yaml:"disabled_tools,omitempty"`
}

// WebConfig configures the local dashboard.
type WebConfig struct {
	Bind string `yaml:"bind,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	ext := ""
	return &Config{
		ImageExtension:   &ext,
		DisplayUTCOffset: "+09:00",
		PageSize:         50,
		Web: WebConfig{
			Bind: "127.0.0.1",
			Port: 8765,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from baseDir/config.yaml.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return LoadFile(filepath.Join(baseDir, FileName))
}

// LoadFile loads configuration from a specific file path merged over
// defaults. A missing file yields the defaults.
func LoadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DBPath = firstNonEmpty(overlay.DBPath, base.DBPath)
	result.ImageRoot = firstNonEmpty(overlay.ImageRoot, base.ImageRoot)
	result.DisplayUTCOffset = firstNonEmpty(overlay.DisplayUTCOffset, base.DisplayUTCOffset)
	result.Web.Bind = firstNonEmpty(overlay.Web.Bind, base.Web.Bind)
	result.Log.Level = firstNonEmpty(overlay.Log.Level, base.Log.Level)

	result.ImageExtension = overlay.ImageExtension
	if result.ImageExtension == nil {
		result.ImageExtension = base.ImageExtension
	}

	result.PageSize = overlay.PageSize
	if result.PageSize == 0 {
		result.PageSize = base.PageSize
	}

	result.Web.Port = overlay.Web.Port
	if result.Web.Port == 0 {
		result.Web.Port = base.Web.Port
	}

	// Booleans: overlay wins if true, else base
	result.Log.Pretty = base.Log.Pretty || overlay.Log.Pretty

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// ApplyEnv loads envFile (if non-empty and present) with godotenv and then
// overlays RECALL_* environment variables onto cfg. Variables already set
// in the process environment win over the file.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv("RECALL_DB"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("RECALL_IMAGE_ROOT"); ok && v != "" {
		cfg.ImageRoot = v
	}
	if v, ok := os.LookupEnv("RECALL_IMAGE_EXT"); ok {
		ext := v
		cfg.ImageExtension = &ext
	}
	if v, ok := os.LookupEnv("RECALL_UTC_OFFSET"); ok && v != "" {
		cfg.DisplayUTCOffset = v
	}
	if v, ok := os.LookupEnv("RECALL_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("RECALL_WEB_BIND"); ok && v != "" {
		cfg.Web.Bind = v
	}
	if v, ok := os.LookupEnv("RECALL_WEB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECALL_WEB_PORT must be an integer: %w", err)
		}
		cfg.Web.Port = port
	}
	if v, ok := os.LookupEnv("RECALL_DISABLED_TOOLS"); ok && v != "" {
		cfg.DisabledTools = mergeStringSlice(cfg.DisabledTools, strings.Split(v, ","))
	}

	return nil
}

// Validate checks values that would otherwise fail late at render or
// listen time.
func (c *Config) Validate() error {
	if _, err := c.Offset(); err != nil {
		return err
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must be non-negative, got %d", c.PageSize)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	if ext := c.Extension(); strings.ContainsAny(ext, `/\`) {
		return fmt.Errorf("image_extension must not contain path separators: %q", ext)
	}
	return nil
}

// Extension returns the configured image file extension ("" when unset).
func (c *Config) Extension() string {
	if c.ImageExtension == nil {
		return ""
	}
	return *c.ImageExtension
}

// Offset returns DisplayUTCOffset as a duration east of UTC.
func (c *Config) Offset() (time.Duration, error) {
	return ParseOffset(c.DisplayUTCOffset)
}

// ParseOffset parses "Z", "UTC", "+09:00", "-0530" or "+9" into a duration
// east of UTC. Offsets beyond ±14h are rejected.
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "Z", "UTC":
		return 0, nil
	}

	sign := time.Duration(1)
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	default:
		return 0, fmt.Errorf("invalid UTC offset %q: must start with + or -", s)
	}

	var hh, mm string
	switch {
	case strings.Contains(s, ":"):
		hh, mm, _ = strings.Cut(s, ":")
	case len(s) == 4:
		hh, mm = s[:2], s[2:]
	default:
		hh, mm = s, "0"
	}

	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid UTC offset hours %q", hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m >= 60 {
		return 0, fmt.Errorf("invalid UTC offset minutes %q", mm)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if h < 0 || d > 14*time.Hour {
		return 0, fmt.Errorf("UTC offset out of range: %s", s)
	}
	return sign * d, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
