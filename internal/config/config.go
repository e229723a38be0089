// Package config loads codex-mem settings from defaults, an optional
// config.toml and CODEX_MEM_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"github.com/spf13/viper"

	"github.com/rcliao/codex-mem/internal/extract"
	"github.com/rcliao/codex-mem/internal/project"
	"github.com/rcliao/codex-mem/internal/store"
)

// ErrInvalidConfig is returned when settings fail validation.
var ErrInvalidConfig = errors.New("invalid codex-mem settings")

// EnvPrefix is the prefix of every environment variable read.
const EnvPrefix = "CODEX_MEM"

// Settings holds the effective configuration.
type Settings struct {
	RootMarkers    []string `toml:"root_markers" json:"root_markers"`
	RemoteEnabled  bool     `toml:"remote" json:"remote"`
	RemoteModel    string   `toml:"remote_model" json:"remote_model"`
	RemoteMaxChars int      `toml:"remote_max_chars" json:"remote_max_chars"`
	RedactPatterns []string `toml:"redact_patterns" json:"redact_patterns"`
	Allow          []string `toml:"allow" json:"allow"`
	Deny           []string `toml:"deny" json:"deny"`
	MaxPerTurn     int      `toml:"max_per_turn" json:"max_per_turn"`
	MergeThreshold float64  `toml:"merge_threshold" json:"merge_threshold"`
	SpoolEnabled   bool     `toml:"spool_enabled" json:"spool_enabled"`
	MaxRecall      int      `toml:"max_recall" json:"max_recall"`
	IncludeGlobal  bool     `toml:"include_global" json:"include_global"`
	LogLevel       string   `toml:"log_level" json:"log_level"`
	BusyTimeoutMS  int      `toml:"busy_timeout_ms" json:"busy_timeout_ms"`

	// Paths is the on-disk layout; it is not read from the config file.
	Paths project.Paths `toml:"-" json:"paths"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		RootMarkers:    append([]string(nil), project.DefaultRootMarkers...),
		RemoteModel:    extract.DefaultRemoteModel,
		RemoteMaxChars: extract.DefaultRemoteMaxChars,
		MaxPerTurn:     5,
		MergeThreshold: store.DefaultMergeThreshold,
		SpoolEnabled:   true,
		MaxRecall:      store.DefaultRecallLimit,
		IncludeGlobal:  true,
		LogLevel:       "info",
		BusyTimeoutMS:  int(store.DefaultBusyTimeout.Milliseconds()),
	}
}

// Load resolves settings for the given base directory; an empty base uses
// project.BaseDir.
//
// Precedence (highest to lowest):
//  1. Environment variables (CODEX_MEM_MAX_PER_TURN, CODEX_MEM_ALLOW, etc.)
//  2. <base>/config.toml
//  3. Default()
func Load(base string) (*Settings, error) {
	paths := project.Layout(base)
	v, err := initViper(paths.Base)
	if err != nil {
		return nil, err
	}

	s := &Settings{Paths: paths}
	var errs []error
	s.RootMarkers = stringList(v, "root_markers")
	s.RedactPatterns = stringList(v, "redact_patterns")
	s.Allow = stringList(v, "allow")
	s.Deny = stringList(v, "deny")
	s.RemoteModel = strings.TrimSpace(v.GetString("remote_model"))
	s.LogLevel = strings.TrimSpace(v.GetString("log_level"))
	s.RemoteEnabled = boolValue(v, "remote")
	s.SpoolEnabled = boolValue(v, "spool_enabled")
	s.IncludeGlobal = boolValue(v, "include_global")
	s.RemoteMaxChars = intValue(v, "remote_max_chars", &errs)
	s.MaxPerTurn = intValue(v, "max_per_turn", &errs)
	s.MaxRecall = intValue(v, "max_recall", &errs)
	s.BusyTimeoutMS = intValue(v, "busy_timeout_ms", &errs)
	s.MergeThreshold = floatValue(v, "merge_threshold", &errs)

	if len(s.RootMarkers) == 0 {
		s.RootMarkers = append([]string(nil), project.DefaultRootMarkers...)
	}
	if s.RemoteModel == "" {
		s.RemoteModel = extract.DefaultRemoteModel
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func initViper(base string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(base)
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, filepath.Join(base, "config.toml"), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root_markers", d.RootMarkers)
	v.SetDefault("remote", d.RemoteEnabled)
	v.SetDefault("remote_model", d.RemoteModel)
	v.SetDefault("remote_max_chars", d.RemoteMaxChars)
	v.SetDefault("redact_patterns", d.RedactPatterns)
	v.SetDefault("allow", d.Allow)
	v.SetDefault("deny", d.Deny)
	v.SetDefault("max_per_turn", d.MaxPerTurn)
	v.SetDefault("merge_threshold", d.MergeThreshold)
	v.SetDefault("spool_enabled", d.SpoolEnabled)
	v.SetDefault("max_recall", d.MaxRecall)
	v.SetDefault("include_global", d.IncludeGlobal)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("busy_timeout_ms", d.BusyTimeoutMS)
}

// Validate checks ranges and glob syntax.
func (s *Settings) Validate() error {
	var errs []error
	if s.MergeThreshold <= 0 || s.MergeThreshold > 1 {
		errs = append(errs, fmt.Errorf("merge_threshold must be in (0, 1], got %v", s.MergeThreshold))
	}
	if s.MaxPerTurn < 1 {
		errs = append(errs, fmt.Errorf("max_per_turn must be at least 1, got %d", s.MaxPerTurn))
	}
	if s.MaxRecall < 1 {
		errs = append(errs, fmt.Errorf("max_recall must be at least 1, got %d", s.MaxRecall))
	}
	if s.RemoteMaxChars < 1 {
		errs = append(errs, fmt.Errorf("remote_max_chars must be at least 1, got %d", s.RemoteMaxChars))
	}
	if s.BusyTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("busy_timeout_ms must not be negative, got %d", s.BusyTimeoutMS))
	}
	for _, p := range append(append([]string(nil), s.Allow...), s.Deny...) {
		if _, err := glob.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("invalid glob %q: %w", p, err))
		}
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// BusyTimeout returns the SQLite busy timeout as a duration.
func (s *Settings) BusyTimeout() time.Duration {
	return time.Duration(s.BusyTimeoutMS) * time.Millisecond
}

// TOML renders the settings as a config.toml document.
func (s *Settings) TOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// stringList reads a list that may come from TOML as an array or from the
// environment as comma-separated values.
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []interface{}:
		for _, item := range val {
			raw = append(raw, fmt.Sprint(item))
		}
	}
	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func boolValue(v *viper.Viper, key string) bool {
	switch val := v.Get(key).(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	}
	return v.GetBool(key)
}

func intValue(v *viper.Viper, key string, errs *[]error) int {
	if s, ok := v.Get(key).(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, s))
		}
		return n
	}
	return v.GetInt(key)
}

func floatValue(v *viper.Viper, key string, errs *[]error) float64 {
	if s, ok := v.Get(key).(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, s))
		}
		return f
	}
	return v.GetFloat64(key)
}
