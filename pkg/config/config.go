package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects what the bridge does with telemetry once connected.
type Mode string

const (
	// ModeIngest parses marker lines and appends events to the journal.
	ModeIngest Mode = "ingest"
	// ModePassive connects, logs in, and keeps the session alive, but
	// ignores telemetry. Used to validate connectivity and credentials
	// without writing anything.
	ModePassive Mode = "passive"
)

// Config is the full bridge configuration, loaded once at startup.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Auth       AuthConfig       `yaml:"auth"`
	Output     OutputConfig     `yaml:"output"`
	Mode       ModeConfig       `yaml:"mode"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ConnectionConfig identifies the MUX server.
type ConnectionConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig holds the player credentials used for login.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// OutputConfig controls where the journal, run metadata, technical logs,
// and heartbeat file are written.
type OutputConfig struct {
	OutDir     string `yaml:"out_dir"`
	MetaSubdir string `yaml:"meta_subdir"`
	LogsSubdir string `yaml:"logs_subdir"`
}

// ModeConfig selects the operating mode.
type ModeConfig struct {
	Name Mode `yaml:"name"`
}

// LoggingConfig controls the technical log.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// MetricsConfig controls the optional Prometheus endpoint. An empty
// listen address disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads and validates a YAML config file. Any missing or invalid
// required value is an error; the caller is expected to treat it as
// startup-fatal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Output.MetaSubdir == "" {
		c.Output.MetaSubdir = "meta"
	}
	if c.Output.LogsSubdir == "" {
		c.Output.LogsSubdir = "logs"
	}
	if c.Mode.Name == "" {
		c.Mode.Name = ModePassive
	} else {
		c.Mode.Name = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode.Name))))
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks all required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Connection.Host) == "" {
		return fmt.Errorf("invalid config: connection.host must be a non-empty string")
	}
	if c.Connection.Port < 1 || c.Connection.Port > 65535 {
		return fmt.Errorf("invalid config: connection.port must be in range 1..65535, got %d", c.Connection.Port)
	}
	if strings.TrimSpace(c.Auth.Username) == "" {
		return fmt.Errorf("invalid config: auth.username must be a non-empty string")
	}
	if c.Auth.Password == "" {
		return fmt.Errorf("invalid config: auth.password must be a non-empty string")
	}
	if strings.TrimSpace(c.Output.OutDir) == "" {
		return fmt.Errorf("invalid config: output.out_dir must be a non-empty path")
	}
	if c.Mode.Name != ModeIngest && c.Mode.Name != ModePassive {
		return fmt.Errorf("invalid config: mode.name must be %q or %q, got %q", ModeIngest, ModePassive, c.Mode.Name)
	}
	return nil
}

// Addr returns the host:port dial address of the MUX server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Connection.Host, c.Connection.Port)
}
