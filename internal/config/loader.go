package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/entityhistory/internal/db"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// Config is the full service configuration.
type Config struct {
	Server         ServerConfig
	Database       db.Config
	StorageDriver  string
	RunMigrations  bool
	LogLevel       string
	BreakingFields []string
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database:      db.DefaultConfig(),
		StorageDriver: StorageDriverPostgres,
		RunMigrations: true,
		LogLevel:      "info",
	}
}

// Load reads config.yaml from configPath, applies environment overrides and
// falls back to DefaultConfig for anything unset. A missing file is not an error.
func Load(configPath string) (Config, bool, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // allow environment overrides like DATABASE_HOST, SERVER_ADDR

	// Map nested keys to the short DB_* names as well
	v.BindEnv("database.host", "DB_HOST", "DATABASE_HOST")
	v.BindEnv("database.port", "DB_PORT", "DATABASE_PORT")
	v.BindEnv("database.user", "DB_USER", "DATABASE_USER")
	v.BindEnv("database.password", "DB_PASSWORD", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME", "DATABASE_DBNAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE", "DATABASE_SSLMODE")
	v.BindEnv("database.max_conns", "DB_MAX_CONNS", "DATABASE_MAX_CONNS")
	v.BindEnv("log.level", "LOG_LEVEL")

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, false, fmt.Errorf("failed to read config: %w", err)
		}
		loaded = false
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.max_conns") {
		cfg.Database.MaxConns = v.GetInt32("database.max_conns")
	}
	if v.IsSet("storage.driver") {
		cfg.StorageDriver = strings.ToLower(v.GetString("storage.driver"))
	}
	if v.IsSet("migrations.enabled") {
		cfg.RunMigrations = v.GetBool("migrations.enabled")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}
	if v.IsSet("versioning.breaking_fields") {
		cfg.BreakingFields = v.GetStringSlice("versioning.breaking_fields")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, loaded, err
	}
	return cfg, loaded, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}
