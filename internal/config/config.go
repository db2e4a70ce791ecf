package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	AlertStore AlertStoreConfig `mapstructure:"alert_store"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Events     EventsConfig     `mapstructure:"events"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AlertStoreConfig points at the Wazuh indexer (OpenSearch) holding the
// alert documents the risk engine correlates against.
type AlertStoreConfig struct {
	Addresses          []string      `mapstructure:"addresses"`
	Username           string        `mapstructure:"username"`
	PasswordEnv        string        `mapstructure:"password_env"`
	Index              string        `mapstructure:"index"`
	Window             time.Duration `mapstructure:"window"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxAlerts          int           `mapstructure:"max_alerts"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

type RegistryConfig struct {
	RefreshConcurrency int    `mapstructure:"refresh_concurrency"`
	SeedFile           string `mapstructure:"seed_file"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // "memory" or "postgres"
	Database DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type AuthConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	JWTSecretEnv   string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Users          []UserConfig  `mapstructure:"users"`
}

// UserConfig is one statically provisioned API user. PasswordHash is an
// Argon2id encoded hash, never a plaintext password.
type UserConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"` // "admin" or "viewer"
}

type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_port", 8000)
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("alert_store.addresses", []string{"https://localhost:9200"})
	viper.SetDefault("alert_store.username", "admin")
	viper.SetDefault("alert_store.password_env", "ALERT_STORE_PASSWORD")
	viper.SetDefault("alert_store.index", "wazuh-alerts-*")
	viper.SetDefault("alert_store.window", "24h")
	viper.SetDefault("alert_store.request_timeout", "5s")
	viper.SetDefault("alert_store.max_alerts", 100)
	// Verify-on by default; opt out explicitly for dev clusters with
	// self-signed certificates.
	viper.SetDefault("alert_store.insecure_skip_verify", false)

	viper.SetDefault("registry.refresh_concurrency", 8)

	viper.SetDefault("storage.driver", "memory")
	viper.SetDefault("storage.database.max_connections", 10)

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	viper.SetDefault("auth.access_token_ttl", "60m")

	viper.SetDefault("events.subject_prefix", "iotsentry.events")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("IOTS")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Password resolves the alert store password from the configured
// environment variable.
func (a *AlertStoreConfig) Password() string {
	envVar := a.PasswordEnv
	if envVar == "" {
		envVar = "ALERT_STORE_PASSWORD"
	}
	return os.Getenv(envVar)
}

// GetJWTSecret loads the signing secret from the environment.
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development fallback
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}

func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != "dev-secret-change-in-production-min-32-chars" && len(secret) >= 32
}
