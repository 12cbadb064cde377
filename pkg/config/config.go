package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Chat     ChatConfig     `yaml:"chat"`
	Engine   EngineConfig   `yaml:"engine"`
	Ops      OpsConfig      `yaml:"ops"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	MaxConnections int    `yaml:"max_connections"`
	MinConnections int    `yaml:"min_connections"`
	SSLMode        string `yaml:"ssl_mode"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ChatConfig represents chat-platform adapter configuration
type ChatConfig struct {
	Token          string        `yaml:"token"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	ReadyTimeout   time.Duration `yaml:"ready_timeout"`
	DisplayZoneOff int           `yaml:"display_zone_offset_hours"`
}

// EngineConfig holds the moderation engine tunables. Defaults mirror the
// production rules; they are configurable mostly for tests.
type EngineConfig struct {
	RequiredWeight       int           `yaml:"required_weight"`
	MaxOutstanding       int           `yaml:"max_outstanding_per_report"`
	DeliveryTTL          time.Duration `yaml:"delivery_ttl"`
	VoteDeadline         time.Duration `yaml:"vote_deadline"`
	DispenseCooldown     time.Duration `yaml:"dispense_cooldown"`
	InactivityCooldown   time.Duration `yaml:"inactivity_cooldown"`
	CaptureGrace         time.Duration `yaml:"capture_grace"`
	DistributorInterval  time.Duration `yaml:"distributor_interval"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	PointsPerHour        int           `yaml:"points_per_hour"`
	CaptchaShiftAge      time.Duration `yaml:"captcha_shift_age"`
	CaptchaTTL           time.Duration `yaml:"captcha_ttl"`
	CaptchaIssueInterval time.Duration `yaml:"captcha_issue_interval"`
	CaptchaSweepInterval time.Duration `yaml:"captcha_sweep_interval"`
	AccrualInterval      time.Duration `yaml:"accrual_interval"`
	ShutdownGrace        time.Duration `yaml:"shutdown_grace"`
}

// OpsConfig represents the operational HTTP surface configuration
type OpsConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load from YAML file if it exists
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a configuration with default values
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "vigil",
			Password:       "vigil_dev",
			Database:       "vigil_dev",
			MaxConnections: 20,
			MinConnections: 5,
			SSLMode:        "disable",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Chat: ChatConfig{
			CallTimeout:    15 * time.Second,
			ReadyTimeout:   30 * time.Second,
			DisplayZoneOff: -3,
		},
		Engine: EngineConfig{
			RequiredWeight:       5,
			MaxOutstanding:       10,
			DeliveryTTL:          5 * time.Minute,
			VoteDeadline:         5 * time.Minute,
			DispenseCooldown:     10 * time.Minute,
			InactivityCooldown:   time.Hour,
			CaptureGrace:         10 * time.Second,
			DistributorInterval:  30 * time.Second,
			SweepInterval:        60 * time.Second,
			PointsPerHour:        1,
			CaptchaShiftAge:      3 * time.Hour,
			CaptchaTTL:           15 * time.Minute,
			CaptchaIssueInterval: 5 * time.Minute,
			CaptchaSweepInterval: 60 * time.Second,
			AccrualInterval:      time.Hour,
			ShutdownGrace:        30 * time.Second,
		},
		Ops: OpsConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// getConfigPath returns the configuration file path
func getConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("VIGIL_CONFIG"); path != "" {
		return path
	}

	// Look for config.yaml in current directory
	return "config.yaml"
}

// applyEnv overrides configuration with environment variables
func (c *Config) applyEnv() {
	// Database configuration
	if host := os.Getenv("VIGIL_DATABASE_HOST"); host != "" {
		c.Database.Host = host
	}
	if port := os.Getenv("VIGIL_DATABASE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Database.Port = p
		}
	}
	if user := os.Getenv("VIGIL_DATABASE_USER"); user != "" {
		c.Database.User = user
	}
	if password := os.Getenv("VIGIL_DATABASE_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if database := os.Getenv("VIGIL_DATABASE_DATABASE"); database != "" {
		c.Database.Database = database
	}
	if maxConns := os.Getenv("VIGIL_DATABASE_MAX_CONNECTIONS"); maxConns != "" {
		if m, err := strconv.Atoi(maxConns); err == nil {
			c.Database.MaxConnections = m
		}
	}
	if minConns := os.Getenv("VIGIL_DATABASE_MIN_CONNECTIONS"); minConns != "" {
		if m, err := strconv.Atoi(minConns); err == nil {
			c.Database.MinConnections = m
		}
	}
	if sslMode := os.Getenv("VIGIL_DATABASE_SSL_MODE"); sslMode != "" {
		c.Database.SSLMode = sslMode
	}

	// Logging configuration
	if level := os.Getenv("VIGIL_LOGGING_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("VIGIL_LOGGING_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	// Chat configuration
	if token := os.Getenv("VIGIL_CHAT_TOKEN"); token != "" {
		c.Chat.Token = token
	}
	if timeout := os.Getenv("VIGIL_CHAT_CALL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Chat.CallTimeout = d
		}
	}

	// Ops configuration
	if host := os.Getenv("VIGIL_OPS_HOST"); host != "" {
		c.Ops.Host = host
	}
	if port := os.Getenv("VIGIL_OPS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Ops.Port = p
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate database configuration
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("max connections must be at least 1")
	}

	if c.Database.MinConnections < 0 {
		return fmt.Errorf("min connections cannot be negative")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("min connections cannot be greater than max connections")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	// Validate engine configuration
	if c.Engine.RequiredWeight < 1 {
		return fmt.Errorf("required weight must be at least 1")
	}

	if c.Engine.MaxOutstanding < 1 {
		return fmt.Errorf("max outstanding per report must be at least 1")
	}

	if c.Engine.DeliveryTTL <= 0 {
		return fmt.Errorf("delivery ttl must be positive")
	}

	if c.Engine.VoteDeadline <= 0 {
		return fmt.Errorf("vote deadline must be positive")
	}

	if c.Engine.PointsPerHour < 0 {
		return fmt.Errorf("points per hour cannot be negative")
	}

	// Validate ops configuration
	if c.Ops.Port <= 0 || c.Ops.Port > 65535 {
		return fmt.Errorf("invalid ops port: %d", c.Ops.Port)
	}

	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Database: %s@%s:%d/%s, Logging: %s/%s, Ops: %s:%d}",
		c.Database.User, c.Database.Host, c.Database.Port, c.Database.Database,
		c.Logging.Level, c.Logging.Format,
		c.Ops.Host, c.Ops.Port,
	)
}

// DisplayZone returns the zone used when surfacing timestamps to users.
func (c *Config) DisplayZone() *time.Location {
	return time.FixedZone("display", c.Chat.DisplayZoneOff*3600)
}
