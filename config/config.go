// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sammcj/tripnow-mcp/types"
)

const (
	defaultConfigDir  = ".config/tripnow-mcp"
	defaultConfigFile = "config.yaml"

	// DefaultUpstreamURL is the TripNow chat completions endpoint
	DefaultUpstreamURL = "https://tripnowengine.133.cn/tripnow/v1/chat/completions"
	// DefaultModel is the model sent in every upstream request
	DefaultModel = "tripnow-travel-pro"
)

// Transport names accepted by server.transport
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds the complete configuration for the TripNow MCP server
type Config struct {
	// APIKey is the process-wide credential; it wins over request metadata.
	APIKey string `yaml:"api_key"`

	Upstream struct {
		URL     string        `yaml:"url"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"upstream"`

	Tool struct {
		ResponseFormat       string `yaml:"response_format"`
		HonorFormatDirective bool   `yaml:"honor_format_directive"`
	} `yaml:"tool"`

	Server struct {
		Transport    string `yaml:"transport"`
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		EndpointPath string `yaml:"endpoint_path"`
	} `yaml:"server"`

	Journal struct {
		Enable bool   `yaml:"enable"`
		Path   string `yaml:"path"`
	} `yaml:"journal"`

	Metrics struct {
		Enable bool `yaml:"enable"`
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}

	// Upstream defaults
	cfg.Upstream.URL = DefaultUpstreamURL
	cfg.Upstream.Model = DefaultModel
	cfg.Upstream.Timeout = 30 * time.Second

	// The tool passes upstream text through unless told otherwise
	cfg.Tool.ResponseFormat = "text"
	cfg.Tool.HonorFormatDirective = false

	// Server defaults
	cfg.Server.Transport = TransportStdio
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Server.EndpointPath = "/mcp"

	// Journal defaults - off by default
	cfg.Journal.Enable = false
	cfg.Journal.Path = "tripnow-journal.db"

	cfg.Metrics.Enable = true

	cfg.Logging.Level = "info"

	return cfg
}

// GetConfigPath returns the path to the default config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, defaultConfigDir)
	return filepath.Join(configDir, defaultConfigFile), nil
}

// LoadDotEnv loads a .env file into the process environment if one exists.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Resolve picks the config file to use. An explicit path must exist; otherwise the
// default location is used when present, and built-in defaults when it is not.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	defaultPath, err := GetConfigPath()
	if err == nil {
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			return Load(defaultPath)
		}
	}

	cfg := DefaultConfig()
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with default config to ensure all fields have values
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may carry an API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Addr returns the listen address for the HTTP transport
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables on top of file values
func (c *Config) applyEnv(lookup lookupFunc) {
	// The lower-case name is the one documented for the service
	for _, name := range []string{"tripnow_api_key", "TRIPNOW_API_KEY"} {
		if v, ok := lookup(name); ok && v != "" {
			c.APIKey = v
			break
		}
	}
	if v, ok := lookup("TRIPNOW_API_URL"); ok && v != "" {
		c.Upstream.URL = v
	}
	if v, ok := lookup("TRIPNOW_MODEL"); ok && v != "" {
		c.Upstream.Model = v
	}
	if v, ok := lookup("TRIPNOW_TIMEOUT"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Upstream.Timeout = d
		}
	}
	if v, ok := lookup("TRIPNOW_RESPONSE_FORMAT"); ok && v != "" {
		c.Tool.ResponseFormat = v
	}
	if v, ok := lookup("TRIPNOW_TRANSPORT"); ok && v != "" {
		c.Server.Transport = strings.ToLower(v)
	}
	if v, ok := lookup("TRIPNOW_HOST"); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := lookup("TRIPNOW_PORT"); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v, ok := lookup("TRIPNOW_JOURNAL_PATH"); ok && v != "" {
		c.Journal.Enable = true
		c.Journal.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
}

// validate checks that required fields are present and valid
func (c *Config) validate() error {
	if c.Upstream.URL == "" {
		return &types.ConfigError{Field: "upstream.url", Message: "is required"}
	}
	if c.Upstream.Model == "" {
		return &types.ConfigError{Field: "upstream.model", Message: "is required"}
	}
	if c.Upstream.Timeout <= 0 {
		return &types.ConfigError{Field: "upstream.timeout", Message: "must be positive"}
	}

	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return &types.ConfigError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
		}
		if !strings.HasPrefix(c.Server.EndpointPath, "/") {
			return &types.ConfigError{Field: "server.endpoint_path", Message: "must start with /"}
		}
	default:
		return &types.ConfigError{Field: "server.transport", Message: fmt.Sprintf("unknown transport %q", c.Server.Transport)}
	}

	if c.Journal.Enable && c.Journal.Path == "" {
		return &types.ConfigError{Field: "journal.path", Message: "is required when the journal is enabled"}
	}

	return nil
}
