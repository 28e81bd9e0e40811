// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type ClubConfig struct {
	// IANA timezone the club's booking cutoffs are expressed in.
	Timezone  string `yaml:"timezone"`
	Courts    int    `yaml:"courts"`
	FirstHour int    `yaml:"first_hour"`
	LastHour  int    `yaml:"last_hour"`
}

type EmailConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	Sender  string `yaml:"sender"`
	// Loaded from environment, never from yaml.
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type SweeperConfig struct {
	Cron string `yaml:"cron"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		TrustProxy  bool   `yaml:"trust_proxy"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Club     ClubConfig     `yaml:"club"`
	Email    EmailConfig    `yaml:"email"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
}

// Load loads both .env and yaml configuration.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.Email.AccessKeyID = os.Getenv("SES_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("SES_SECRET_ACCESS_KEY")

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Club.Timezone == "" {
		c.Club.Timezone = "Europe/Berlin"
	}
	if c.Club.Courts == 0 {
		c.Club.Courts = 6
	}
	if c.Club.FirstHour == 0 {
		c.Club.FirstHour = 8
	}
	if c.Club.LastHour == 0 {
		c.Club.LastHour = 22
	}
	if c.Sweeper.Cron == "" {
		c.Sweeper.Cron = "*/30 * * * *"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if _, err := time.LoadLocation(c.Club.Timezone); err != nil {
		return fmt.Errorf("invalid club timezone %q: %w", c.Club.Timezone, err)
	}
	if c.Club.Courts < 1 {
		return fmt.Errorf("club must have at least one court")
	}
	if c.Club.FirstHour < 0 || c.Club.LastHour > 24 || c.Club.FirstHour >= c.Club.LastHour {
		return fmt.Errorf("club hours %d-%d are not a valid range", c.Club.FirstHour, c.Club.LastHour)
	}
	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
		if c.Email.AccessKeyID == "" || c.Email.SecretAccessKey == "" {
			return fmt.Errorf("SES credentials are required when email is enabled")
		}
	}
	return nil
}
