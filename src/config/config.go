package config

import (
	"fmt"
	"net/url"
	"os"

	"parking-viewer/src/models"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the YAML leaves a field unset
const (
	DefaultCadenceMillis   = 200
	DefaultHistoryCapacity = 50
	DefaultRequestTimeout  = 5
	DefaultRetentionDays   = 7
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML
func Parse(data []byte) (*Config, error) {
	// 1. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 2. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Simulation.CadenceMillis == 0 {
		c.Simulation.CadenceMillis = DefaultCadenceMillis
	}
	if c.Simulation.HistoryCapacity == 0 {
		c.Simulation.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.Simulation.Mode == "" {
		c.Simulation.Mode = models.ModeFCFS
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = DefaultRequestTimeout
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = DefaultRetentionDays
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Validate Simulation configuration
	u, err := url.Parse(c.Simulation.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("simulation base_url must be an http(s) URL, got '%s'", c.Simulation.BaseURL)
	}
	if err := c.DefaultParams().Validate(); err != nil {
		return fmt.Errorf("simulation parameters: %w", err)
	}
	if c.Simulation.CadenceMillis < 0 {
		return fmt.Errorf("cadence must be greater than 0")
	}
	if c.Simulation.HistoryCapacity < 0 {
		return fmt.Errorf("history capacity must be greater than 0")
	}
	if c.Simulation.AutoRetrySeconds < 0 {
		return fmt.Errorf("auto retry seconds cannot be negative")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unknown database type '%s'", c.Storage.DBType)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// DefaultParams returns the session parameters used for the first start
func (c *Config) DefaultParams() models.MSessionParams {
	return models.MSessionParams{
		SpawnRate: c.Simulation.SpawnRate,
		Mode:      c.Simulation.Mode,
	}
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
