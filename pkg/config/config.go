package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the gateway runtime configuration. The point mapping
// itself lives in a separate INI file (see pkg/mapping); this file carries
// everything else: timings, the 104 server endpoint and observability.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	IEC104  IEC104Config  `yaml:"iec104"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig contains engine timing and queue settings
type GatewayConfig struct {
	// PollingInterval is the cadence of the fallback poll on a connected IED.
	PollingInterval time.Duration `yaml:"polling_interval"`

	// ReconnectDelay is the back-off after a supervisor faults.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// ConnectionCheckInterval is the liveness probe cadence.
	ConnectionCheckInterval time.Duration `yaml:"connection_check_interval"`

	// QueueCapacity bounds the event queue between the supervisors and the
	// translation worker. On overflow the oldest event is dropped.
	QueueCapacity int `yaml:"queue_capacity"`

	// ShutdownTimeout is the global deadline for graceful shutdown; tasks
	// still running afterwards are abandoned.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// IEC104Config contains the telecontrol server settings
type IEC104Config struct {
	// ListenAddress is the CS104 listen endpoint for the master.
	ListenAddress string `yaml:"listen_address"`

	// CommonAddress is the ASDU common address of this station.
	CommonAddress uint16 `yaml:"common_address"`
}

// MetricsConfig contains Prometheus exposition settings
type MetricsConfig struct {
	// ListenAddress serves /metrics when non-empty.
	ListenAddress string `yaml:"listen_address"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			PollingInterval:         5 * time.Second,
			ReconnectDelay:          15 * time.Second,
			ConnectionCheckInterval: 30 * time.Second,
			QueueCapacity:           1024,
			ShutdownTimeout:         10 * time.Second,
		},
		IEC104: IEC104Config{
			ListenAddress: ":2404",
			CommonAddress: 1,
		},
		Metrics: MetricsConfig{
			ListenAddress: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error: the defaults apply and the mapping INI remains the only required
// input of the gateway.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// If no path provided, look for gateway.yaml in current directory
	if path == "" {
		path = "gateway.yaml"
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Return default config if file doesn't exist
		return cfg, nil
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := []byte(os.ExpandEnv(string(data)))

	// Parse YAML
	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Gateway.PollingInterval <= 0 {
		return fmt.Errorf("gateway.polling_interval must be positive")
	}

	if c.Gateway.ReconnectDelay <= 0 {
		return fmt.Errorf("gateway.reconnect_delay must be positive")
	}

	if c.Gateway.ConnectionCheckInterval <= 0 {
		return fmt.Errorf("gateway.connection_check_interval must be positive")
	}

	if c.Gateway.QueueCapacity < 1 {
		return fmt.Errorf("gateway.queue_capacity must be at least 1")
	}

	if c.IEC104.ListenAddress == "" {
		return fmt.Errorf("iec104.listen_address is required")
	}

	if c.IEC104.CommonAddress == 0 {
		return fmt.Errorf("iec104.common_address must be non-zero")
	}

	return nil
}
