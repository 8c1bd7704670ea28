package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks settings that fail validation.
var ErrInvalid = errors.New("settings: invalid")

// Default values applied before env and YAML overrides.
const (
	DefaultShiftMinutes = 480
	DefaultAlertWindow  = 10 * time.Minute
	DefaultTopReasons   = 3
)

// DefaultTriggerReasons raise the safety alert when no override is given.
var DefaultTriggerReasons = []string{"Health and Safety"}

// Settings holds the line configuration that may change at runtime.
type Settings struct {
	ShiftMinutes   int           `yaml:"shift_minutes"`
	AlertWindow    time.Duration `yaml:"alert_window"`
	TriggerReasons []string      `yaml:"trigger_reasons"`
	Reasons        []string      `yaml:"reasons"`
	TopReasons     int           `yaml:"top_reasons"`
}

// Defaults returns settings seeded from the environment.
func Defaults() Settings {
	cfg := Settings{
		ShiftMinutes:   getenvIntDefault("ANDON_SHIFT_MINUTES", DefaultShiftMinutes),
		AlertWindow:    getenvDuration("ANDON_ALERT_WINDOW", DefaultAlertWindow),
		TriggerReasons: splitCSV(os.Getenv("ANDON_TRIGGER_REASONS")),
		Reasons:        splitCSV(os.Getenv("ANDON_REASONS")),
		TopReasons:     getenvIntDefault("ANDON_TOP_REASONS", DefaultTopReasons),
	}
	if len(cfg.TriggerReasons) == 0 {
		cfg.TriggerReasons = append([]string(nil), DefaultTriggerReasons...)
	}
	return cfg
}

// Load reads settings from env, then overlays the YAML file at path when set.
func Load(path string) (Settings, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("settings: parse %s: %w", path, err)
		}
	}
	cfg.TriggerReasons = trimAll(cfg.TriggerReasons)
	cfg.Reasons = trimAll(cfg.Reasons)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings invariants.
func (s Settings) Validate() error {
	if s.ShiftMinutes <= 0 {
		return fmt.Errorf("%w: shift_minutes must be positive, got %d", ErrInvalid, s.ShiftMinutes)
	}
	if s.AlertWindow <= 0 {
		return fmt.Errorf("%w: alert_window must be positive, got %s", ErrInvalid, s.AlertWindow)
	}
	if len(s.TriggerReasons) == 0 {
		return fmt.Errorf("%w: trigger_reasons required", ErrInvalid)
	}
	if s.TopReasons <= 0 {
		return fmt.Errorf("%w: top_reasons must be positive, got %d", ErrInvalid, s.TopReasons)
	}
	if len(s.Reasons) > 0 {
		known := make(map[string]struct{}, len(s.Reasons))
		for _, reason := range s.Reasons {
			known[reason] = struct{}{}
		}
		for _, reason := range s.TriggerReasons {
			if _, ok := known[reason]; !ok {
				return fmt.Errorf("%w: trigger reason %q missing from reasons", ErrInvalid, reason)
			}
		}
	}
	return nil
}

// Holder shares the active settings between the watcher and request handlers.
type Holder struct {
	mu      sync.RWMutex
	current Settings
}

// NewHolder constructs a holder with initial settings.
func NewHolder(initial Settings) *Holder {
	return &Holder{current: initial}
}

// Current returns the active settings.
func (h *Holder) Current() Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Set replaces the active settings.
func (h *Holder) Set(next Settings) {
	h.mu.Lock()
	h.current = next
	h.mu.Unlock()
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func trimAll(values []string) []string {
	var result []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			result = append(result, value)
		}
	}
	return result
}
