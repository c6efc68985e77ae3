package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort       string `mapstructure:"SERVER_PORT"`
	PostgresURL      string `mapstructure:"POSTGRES_URL"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	JWTSecret        string `mapstructure:"JWT_SECRET"`
	MaxUploadMB      int    `mapstructure:"MAX_UPLOAD_MB"`
	ExplorerPageSize int    `mapstructure:"EXPLORER_PAGE_SIZE"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	LogFormat        string `mapstructure:"LOG_FORMAT"`
	LogFile          string `mapstructure:"LOG_FILE"`
}

// Load reads the environment over built-in defaults. When CONFIG_FILE
// names a YAML file its values sit between the two.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("MAX_UPLOAD_MB", 64)
	v.SetDefault("EXPLORER_PAGE_SIZE", 50)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_FILE", "")

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.MaxUploadMB <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}
	if cfg.ExplorerPageSize <= 0 {
		return Config{}, fmt.Errorf("EXPLORER_PAGE_SIZE must be positive, got %d", cfg.ExplorerPageSize)
	}
	return cfg, nil
}

// BodyLimit is the maximum request body in bytes.
func (c Config) BodyLimit() int {
	return c.MaxUploadMB * 1024 * 1024
}
