package typewriter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds animation cadences and caret settings.
type Config struct {
	EraseInterval  time.Duration // per removed character
	BlinkInterval  time.Duration // between caret toggles, before and after reveal
	BlinkToggles   int           // toggles between erasing and revealing
	RevealInterval time.Duration // between revealed characters
	Caret          string
	// DefaultSelector is looked up in the Document when Type gets no container.
	DefaultSelector string
}

// DefaultConfig returns the stock cadences: 100ms erase, 11 blinks of 300ms,
// 150ms per revealed character.
func DefaultConfig() Config {
	return Config{
		EraseInterval:   100 * time.Millisecond,
		BlinkInterval:   300 * time.Millisecond,
		BlinkToggles:    11,
		RevealInterval:  150 * time.Millisecond,
		Caret:           "_",
		DefaultSelector: ".type-inside",
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.EraseInterval <= 0:
		return errors.New("erase interval must be positive")
	case c.BlinkInterval <= 0:
		return errors.New("blink interval must be positive")
	case c.RevealInterval <= 0:
		return errors.New("reveal interval must be positive")
	case c.BlinkToggles < 0:
		return errors.New("blink toggles must not be negative")
	}
	return nil
}

// Duration returns how long an animation of text takes from Type until the
// last character is revealed, given how much text the container holds.
func (c Config) Duration(existing, text string) time.Duration {
	d := time.Duration(c.BlinkToggles) * c.BlinkInterval
	if n := len([]rune(existing)); n > 1 {
		d += time.Duration(n-1) * c.EraseInterval
	}
	if n := len([]rune(text)); n > 1 {
		d += time.Duration(n-1) * c.RevealInterval
	}
	return d
}

// fileConfig is the on-disk shape. Durations are strings such as "150ms".
type fileConfig struct {
	EraseInterval   string  `yaml:"erase_interval" json:"erase_interval"`
	BlinkInterval   string  `yaml:"blink_interval" json:"blink_interval"`
	BlinkToggles    *int    `yaml:"blink_toggles" json:"blink_toggles"`
	RevealInterval  string  `yaml:"reveal_interval" json:"reveal_interval"`
	Caret           *string `yaml:"caret" json:"caret"`
	DefaultSelector string  `yaml:"default_selector" json:"default_selector"`
}

// LoadConfig reads a YAML or JSON (by extension) file. Fields left out keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// ParseConfig decodes data as JSON when isJSON is set, YAML otherwise.
func ParseConfig(data []byte, isJSON bool) (Config, error) {
	var fc fileConfig
	if isJSON {
		if err := json.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("failed to parse config json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("failed to parse config yaml: %w", err)
		}
	}

	cfg := DefaultConfig()
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"erase_interval", fc.EraseInterval, &cfg.EraseInterval},
		{"blink_interval", fc.BlinkInterval, &cfg.BlinkInterval},
		{"reveal_interval", fc.RevealInterval, &cfg.RevealInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}
	if fc.BlinkToggles != nil {
		cfg.BlinkToggles = *fc.BlinkToggles
	}
	if fc.Caret != nil {
		cfg.Caret = *fc.Caret
	}
	if fc.DefaultSelector != "" {
		cfg.DefaultSelector = fc.DefaultSelector
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MarshalYAML writes the on-disk shape read by LoadConfig.
func (c Config) MarshalYAML() (any, error) {
	toggles, caret := c.BlinkToggles, c.Caret
	return fileConfig{
		EraseInterval:   c.EraseInterval.String(),
		BlinkInterval:   c.BlinkInterval.String(),
		BlinkToggles:    &toggles,
		RevealInterval:  c.RevealInterval.String(),
		Caret:           &caret,
		DefaultSelector: c.DefaultSelector,
	}, nil
}
