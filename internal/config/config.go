package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Mode string `mapstructure:"mode"`
	} `mapstructure:"log"`
	Telemetry struct {
		Enabled     bool    `mapstructure:"enabled"`
		ServiceName string  `mapstructure:"service_name"`
		SampleRatio float64 `mapstructure:"sample_ratio"`
		// Endpoint is an OTLP/HTTP collector address. Spans go to stdout when empty.
		Endpoint string `mapstructure:"endpoint"`
		Insecure bool   `mapstructure:"insecure"`
	} `mapstructure:"telemetry"`
	Generation struct {
		// Provider is "gemini" or "http" (the sidecar protocol).
		Provider    string        `mapstructure:"provider"`
		Model       string        `mapstructure:"model"`
		APIKey      string        `mapstructure:"api_key"`
		SidecarURL  string        `mapstructure:"sidecar_url"`
		Timeout     time.Duration `mapstructure:"timeout"`
		Temperature float32       `mapstructure:"temperature"`
		Retry       struct {
			MaxRetries      uint64        `mapstructure:"max_retries"`
			InitialInterval time.Duration `mapstructure:"initial_interval"`
			MaxInterval     time.Duration `mapstructure:"max_interval"`
		} `mapstructure:"retry"`
	} `mapstructure:"generation"`
	DB struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Contact struct {
		// Sender is "log" or "postgres".
		Sender string `mapstructure:"sender"`
	} `mapstructure:"contact"`
	Auth struct {
		Enabled      bool   `mapstructure:"enabled"`
		OktaDomain   string `mapstructure:"okta_domain"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "DEV")
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "DEV")
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.mode", "dev")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "edugenius-backend")
	v.SetDefault("telemetry.sample_ratio", 0.1)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("generation.provider", "gemini")
	v.SetDefault("generation.model", "gemini-2.0-flash")
	v.SetDefault("generation.timeout", 60*time.Second)
	v.SetDefault("generation.temperature", 0.4)
	v.SetDefault("generation.retry.max_retries", 0)
	v.SetDefault("generation.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("generation.retry.max_interval", 5*time.Second)
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("contact.sender", "log")
	v.SetDefault("auth.enabled", false)
}

// LoadConfig loads the configuration from a file and the environment. With an empty
// path, config.yaml is searched in "." and "./config"; a missing file is not an error.
// Environment variables use the EDUGENIUS_ prefix, e.g. EDUGENIUS_GENERATION_API_KEY.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EDUGENIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"generation.api_key", "generation.sidecar_url",
		"db.user", "db.password", "db.name",
		"auth.okta_domain", "auth.client_id", "auth.client_secret", "auth.redirect_url",
		"tls.cert_file", "tls.key_file",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Generation.Provider {
	case "gemini", "http":
	default:
		return fmt.Errorf("generation.provider must be gemini or http, got %q", c.Generation.Provider)
	}
	if c.Generation.Provider == "http" && c.Generation.SidecarURL == "" {
		return errors.New("generation.sidecar_url is required for the http provider")
	}
	switch c.Contact.Sender {
	case "log":
	case "postgres":
		if !c.DB.Enabled {
			return errors.New("contact.sender postgres requires db.enabled")
		}
	default:
		return fmt.Errorf("contact.sender must be log or postgres, got %q", c.Contact.Sender)
	}
	return nil
}

// normalizeOktaIssuer strips surrounding space and a trailing slash so the issuer
// can be pasted straight from the Okta admin console.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
