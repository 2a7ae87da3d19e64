// Package config loads service configuration from an optional YAML
// file overlaid with PLK_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type AuditConfig struct {
	PageSize      int
	RetentionDays int
}

type PasswordConfig struct {
	GeneratedLength int
}

type MigrationsConfig struct {
	Dir      string
	SeedsDir string
}

type AppConfig struct {
	Environment string
	Postgres    PostgresConfig
	Audit       AuditConfig
	Password    PasswordConfig
	Migrations  MigrationsConfig
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("PLK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Registered so AutomaticEnv picks up PLK_POSTGRES_DSN even when
	// no config file mentions the key.
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("audit.pagesize", 50)
	v.SetDefault("audit.retentiondays", 365)

	v.SetDefault("password.generatedlength", 16)

	v.SetDefault("migrations.dir", "ops/migrations/sql")
	v.SetDefault("migrations.seedsdir", "ops/migrations/seeds")
}
