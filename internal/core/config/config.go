// Package config provides configuration management for farekeeper.
package config

import (
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Series SeriesConfig
}

// ServerConfig holds listener settings for the HTTP API and gRPC health service.
type ServerConfig struct {
	Host           string
	Port           int
	GRPCPort       int
	RequestTimeout time.Duration
}

// StoreConfig selects and bounds the policy store.
type StoreConfig struct {
	// URL is a file path, file://, sqlite:// or postgres:// location.
	URL string

	// Timeout bounds a single Load or Save.
	Timeout time.Duration

	// AutoMigrate applies embedded migrations when opening a SQL store.
	AutoMigrate bool
}

// SeriesConfig holds defaults for series generation.
type SeriesConfig struct {
	DefaultMax float64
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			GRPCPort:       50051,
			RequestTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			URL:         "./data/policies.json",
			Timeout:     5 * time.Second,
			AutoMigrate: true,
		},
		Series: SeriesConfig{
			DefaultMax: 50,
		},
	}
}
