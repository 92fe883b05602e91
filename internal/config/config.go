// Package config loads the engine configuration from environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string

	// EnabledSources lists backend ids in priority order; the order
	// decides which copy of a duplicated event survives deduplication.
	EnabledSources []string

	// ICSDir is the OS-local calendar store (a directory of .ics files).
	ICSDir string

	Google struct {
		ClientID     string
		ClientSecret string
		RefreshToken string
		CalendarID   string
	}

	WorkingHours struct {
		Start string
		End   string
	}
	DeepWorkDays     []time.Weekday
	MeetingHeavyDays []time.Weekday

	PrometheusEnabled bool
	TrustedProxies    []string
}

// OSEnabled reports whether the local store backend is configured on.
func (c *Config) OSEnabled() bool { return c.sourceEnabled("os") }

// CloudEnabled reports whether the cloud backend is configured on.
func (c *Config) CloudEnabled() bool { return c.sourceEnabled("cloud") }

func (c *Config) sourceEnabled(id string) bool {
	for _, s := range c.EnabledSources {
		if s == id {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.EnabledSources = getenvList("CAL_ENABLED_SOURCES")
	if len(cfg.EnabledSources) == 0 {
		cfg.EnabledSources = []string{"os", "cloud"}
	}
	for _, s := range cfg.EnabledSources {
		if s != "os" && s != "cloud" {
			return nil, fmt.Errorf("CAL_ENABLED_SOURCES contains unknown source %q (want os, cloud)", s)
		}
	}

	cfg.ICSDir = os.Getenv("CAL_ICS_DIR")
	cfg.Google.ClientID = os.Getenv("CAL_GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = os.Getenv("CAL_GOOGLE_CLIENT_SECRET")
	cfg.Google.RefreshToken = os.Getenv("CAL_GOOGLE_REFRESH_TOKEN")
	cfg.Google.CalendarID = getenvDefault("CAL_GOOGLE_CALENDAR_ID", "primary")

	cfg.WorkingHours.Start = getenvDefault("CAL_WORK_START", "09:00")
	cfg.WorkingHours.End = getenvDefault("CAL_WORK_END", "18:00")

	var err error
	if cfg.DeepWorkDays, err = parseWeekdays(getenvList("CAL_DEEP_WORK_DAYS")); err != nil {
		return nil, fmt.Errorf("CAL_DEEP_WORK_DAYS: %w", err)
	}
	if cfg.MeetingHeavyDays, err = parseWeekdays(getenvList("CAL_MEETING_HEAVY_DAYS")); err != nil {
		return nil, fmt.Errorf("CAL_MEETING_HEAVY_DAYS: %w", err)
	}

	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.OSEnabled() && cfg.ICSDir == "" {
		return nil, errors.New("CAL_ICS_DIR is required when the os source is enabled")
	}
	if cfg.CloudEnabled() {
		var missing []string
		if cfg.Google.ClientID == "" {
			missing = append(missing, "CAL_GOOGLE_CLIENT_ID")
		}
		if cfg.Google.ClientSecret == "" {
			missing = append(missing, "CAL_GOOGLE_CLIENT_SECRET")
		}
		if cfg.Google.RefreshToken == "" {
			missing = append(missing, "CAL_GOOGLE_REFRESH_TOKEN")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("cloud source is enabled but %s are not set", strings.Join(missing, ", "))
		}
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. The server will trust all proxies - not recommended for public environments.")
	}

	return cfg, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, name := range names {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out = append(out, day)
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
