package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stockexchange/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	DatabaseURL string      `yaml:"database_url"`
	ListenAddr  string      `yaml:"listen_addr"`
	JWTSecret   string      `yaml:"-"` // from environment only
	Venue       VenueConfig `yaml:"venue"`
	Sweep       SweepConfig `yaml:"sweep"`
}

type VenueConfig struct {
	Timezone     string `yaml:"timezone"`
	TradingOpen  string `yaml:"trading_open"`
	TradingClose string `yaml:"trading_close"`
}

type SweepConfig struct {
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`

	ParsedInterval time.Duration `yaml:"-"`
	ParsedTimeout  time.Duration `yaml:"-"`
}

func Load(filename string) (*Config, error) {
	// Optional .env next to the config file, for secrets
	envPath := filepath.Join(filepath.Dir(filename), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: error loading .env file: %v\n", err)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := &Config{
		ListenAddr: ":8080",
		Venue: VenueConfig{
			Timezone:     "Asia/Seoul",
			TradingOpen:  "09:00",
			TradingClose: "15:20",
		},
		Sweep: SweepConfig{Interval: "10s"},
	}
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.DatabaseURL = url
	}
	config.JWTSecret = os.Getenv("JWT_SECRET")
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	config.Sweep.ParsedInterval, err = time.ParseDuration(config.Sweep.Interval)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sweep interval: %w", err)
	}
	if config.Sweep.Timeout != "" {
		config.Sweep.ParsedTimeout, err = time.ParseDuration(config.Sweep.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sweep timeout: %w", err)
		}
	}

	// Validate venue settings up front so startup fails fast
	if _, err := config.Location(); err != nil {
		return nil, err
	}
	if _, err := config.Window(); err != nil {
		return nil, err
	}
	return config, nil
}

// Location returns the venue timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Venue.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load venue timezone: %w", err)
	}
	return loc, nil
}

// Window returns the daily trading window parsed from HH:MM bounds.
func (c *Config) Window() (models.TradingWindow, error) {
	open, err := parseMinutes(c.Venue.TradingOpen)
	if err != nil {
		return models.TradingWindow{}, fmt.Errorf("failed to parse trading_open: %w", err)
	}
	close, err := parseMinutes(c.Venue.TradingClose)
	if err != nil {
		return models.TradingWindow{}, fmt.Errorf("failed to parse trading_close: %w", err)
	}
	if close < open {
		return models.TradingWindow{}, fmt.Errorf("trading_close %q is before trading_open %q", c.Venue.TradingClose, c.Venue.TradingOpen)
	}
	return models.TradingWindow{Open: open, Close: close}, nil
}

func parseMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day out of range: %q", hhmm)
	}
	return hour*60 + minute, nil
}
