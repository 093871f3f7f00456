package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on top of the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.grpc_port", defaults.Server.GRPCPort)
	v.SetDefault("server.request_timeout", defaults.Server.RequestTimeout.String())
	v.SetDefault("store.url", defaults.Store.URL)
	v.SetDefault("store.timeout", defaults.Store.Timeout.String())
	v.SetDefault("store.auto_migrate", defaults.Store.AutoMigrate)
	v.SetDefault("series.default_max", defaults.Series.DefaultMax)

	// FK_SERVER_PORT, FK_STORE_URL, ...
	v.SetEnvPrefix("FK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			GRPCPort:       v.GetInt("server.grpc_port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Store: StoreConfig{
			URL:         v.GetString("store.url"),
			Timeout:     v.GetDuration("store.timeout"),
			AutoMigrate: v.GetBool("store.auto_migrate"),
		},
		Series: SeriesConfig{
			DefaultMax: v.GetFloat64("series.default_max"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port ranges, positive durations and a usable store URL.
// Callers re-run it after applying flag overrides.
func Validate(cfg *Config) error {
	if err := validatePort("server.port", cfg.Server.Port); err != nil {
		return err
	}
	if err := validatePort("server.grpc_port", cfg.Server.GRPCPort); err != nil {
		return err
	}
	if cfg.Server.Port == cfg.Server.GRPCPort {
		return fmt.Errorf("server.port and server.grpc_port must differ, both are %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if strings.TrimSpace(cfg.Store.URL) == "" {
		return fmt.Errorf("store.url must not be empty")
	}
	if cfg.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be positive, got %v", cfg.Store.Timeout)
	}
	if !(cfg.Series.DefaultMax > 0) {
		return fmt.Errorf("series.default_max must be positive, got %v", cfg.Series.DefaultMax)
	}
	return nil
}

func validatePort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return nil
}
