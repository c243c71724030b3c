package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"sysmon/internal/model"
)

// Refresh interval bounds in milliseconds. Anything outside is rejected at
// startup, before the first tick.
const (
	MinRefreshMS = 50
	MaxRefreshMS = 10000
)

// Config carries runtime options for sysmon. Layering: defaults, then an
// optional JSON config file, then environment variables, then flags.
type Config struct {
	RefreshMS     int            `json:"refresh_ms"`
	Theme         model.Theme    `json:"theme"`
	NoColor       bool           `json:"no_color"`
	Sort          model.SortKey  `json:"sort"`
	Filter        string         `json:"filter"`
	TempUnit      model.TempUnit `json:"temp_unit"`
	HistoryWindow time.Duration  `json:"-"`
}

func Default() Config {
	return Config{
		RefreshMS:     2000,
		Theme:         model.ThemeDark,
		NoColor:       false,
		Sort:          model.SortCPU,
		Filter:        "",
		TempUnit:      model.Fahrenheit,
		HistoryWindow: 2 * time.Minute,
	}
}

// Interval returns the refresh cadence as a Duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.RefreshMS) * time.Millisecond
}

// HistoryCapacity derives ring capacity from the window and an interval.
func (c Config) HistoryCapacity(interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(c.HistoryWindow / interval)
	if n < 1 {
		n = 1
	}
	return n
}

// Validate rejects configurations before any acquisition begins.
func (c Config) Validate() error {
	if c.RefreshMS <= 0 {
		return fmt.Errorf("refresh interval must be a positive number of milliseconds, got %d", c.RefreshMS)
	}
	if c.RefreshMS < MinRefreshMS {
		return fmt.Errorf("refresh interval must be at least %dms, got %d", MinRefreshMS, c.RefreshMS)
	}
	if c.RefreshMS > MaxRefreshMS {
		return fmt.Errorf("refresh interval must be at most %dms, got %d", MaxRefreshMS, c.RefreshMS)
	}
	switch c.Theme {
	case model.ThemeDark, model.ThemeLight:
	default:
		return fmt.Errorf("unknown theme %q (want dark or light)", c.Theme)
	}
	switch c.Sort {
	case model.SortCPU, model.SortMemory, model.SortPID, model.SortName:
	default:
		return fmt.Errorf("unknown sort key %q (want cpu, mem, pid or name)", c.Sort)
	}
	switch c.TempUnit {
	case model.Celsius, model.Fahrenheit:
	default:
		return fmt.Errorf("unknown temperature unit %q (want C or F)", c.TempUnit)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("history window must be positive, got %v", c.HistoryWindow)
	}
	return nil
}

// FromFlags builds the configuration from args, layered over the defaults,
// an optional JSON file and environment overrides.
func FromFlags(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("sysmon", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to JSON config file")
	refresh := fs.Int("refresh", cfg.RefreshMS, "refresh interval in milliseconds")
	theme := fs.String("theme", string(cfg.Theme), "UI theme: dark|light")
	noColor := fs.Bool("no-color", cfg.NoColor, "disable colors")
	sortKey := fs.String("sort", string(cfg.Sort), "initial sort column: cpu|mem|pid|name")
	filter := fs.String("filter", cfg.Filter, "initial process name filter")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	// Flags set explicitly win over both file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "refresh":
			cfg.RefreshMS = *refresh
		case "theme":
			cfg.Theme = model.Theme(*theme)
		case "no-color":
			cfg.NoColor = *noColor
		case "sort":
			cfg.Sort = model.SortKey(*sortKey)
		case "filter":
			cfg.Filter = *filter
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SYSMON_REFRESH_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RefreshMS = n
		}
	}
	if v := os.Getenv("SYSMON_THEME"); v != "" {
		c.Theme = model.Theme(v)
	}
	if os.Getenv("SYSMON_NO_COLOR") == "1" {
		c.NoColor = true
	}
	if v := os.Getenv("SYSMON_SORT"); v != "" {
		c.Sort = model.SortKey(v)
	}
	if v := os.Getenv("SYSMON_FILTER"); v != "" {
		c.Filter = v
	}
}
