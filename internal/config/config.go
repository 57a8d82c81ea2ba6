package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	ServerAddr     string
	DatabaseDriver string
	DatabaseDSN    string
	MigrationsDir  string
	SigningKey     []byte
	AllowedOrigins []string
	GracePeriod    time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func validDriver(driver string) bool {
	switch driver {
	case DriverPostgres, DriverSqlite, DriverMemory:
		return true
	}
	return false
}

func NewConfig(serverAddr, driver, databaseDSN, migrationsDir, base64Secret string,
	allowedOrigins []string, gracePeriod time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if !validDriver(driver) {
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if driver != DriverMemory && databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty for driver %q", driver)
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if gracePeriod <= 0 {
		return nil, fmt.Errorf("grace period must be positive")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDriver: driver,
		DatabaseDSN:    databaseDSN,
		MigrationsDir:  migrationsDir,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		GracePeriod:    gracePeriod,
	}, nil
}

// FromEnv builds a Config from ROOMLEDGER_* environment variables and an
// optional config file. Flag values passed by the caller take precedence
// over everything when non-empty.
func FromEnv(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("roomledger")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server-addr", ":8000")
	v.SetDefault("db-driver", DriverMemory)
	v.SetDefault("db-dsn", "")
	v.SetDefault("migrations-dir", "migrations")
	v.SetDefault("allowed-origins", []string{"http://localhost:3000"})
	v.SetDefault("grace-period", 16*24*time.Hour)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return NewConfig(
		v.GetString("server-addr"),
		v.GetString("db-driver"),
		v.GetString("db-dsn"),
		v.GetString("migrations-dir"),
		v.GetString("signing-secret"),
		v.GetStringSlice("allowed-origins"),
		v.GetDuration("grace-period"),
	)
}
