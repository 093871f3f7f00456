package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/farekeeper/internal/core/config"
	"github.com/solatis/farekeeper/internal/core/logging"
	"github.com/solatis/farekeeper/internal/core/store"
	"github.com/solatis/farekeeper/internal/types"
)

var (
	configFile string
	storeURL   string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "farekeeper",
	Short: "Segmented fare computation and policy store",
	Long: `farekeeper computes distance-based fares under configurable segmented
pricing policies and keeps a named collection of saved policies.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&storeURL, "store-url", "", "policy store location (path, file://, sqlite:// or postgres://)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads config and applies the persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if storeURL != "" {
		cfg.Store.URL = storeURL
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to stderr so command output on stdout stays parseable.
func newLogger() (*slog.Logger, error) {
	return logging.New(os.Stderr, logLevel, logFormat)
}

// setup loads config, logger and store for commands that touch policies.
func setup(ctx context.Context) (*config.Config, *slog.Logger, store.PolicyStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	policies, err := store.Open(ctx, cfg.Store.URL, store.Options{Logger: logger, AutoMigrate: cfg.Store.AutoMigrate})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open policy store: %w", err)
	}
	return cfg, logger, policies, nil
}

// withStoreTimeout bounds one store call.
func withStoreTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.Store.Timeout)
}

// readPolicyFile decodes a FarePolicy from a JSON file ("-" reads stdin).
func readPolicyFile(path string) (types.FarePolicy, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return types.FarePolicy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy types.FarePolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return types.FarePolicy{}, fmt.Errorf("%w: policy file: %v", types.ErrInvalidInput, err)
	}
	if err := policy.Validate(); err != nil {
		return types.FarePolicy{}, err
	}
	return policy, nil
}

// resolvePolicy reads --policy FILE, or looks up --name in the store.
func resolvePolicy(ctx context.Context, policyFile, name string) (types.FarePolicy, error) {
	if policyFile != "" {
		return readPolicyFile(policyFile)
	}
	if name == "" {
		return types.FarePolicy{}, fmt.Errorf("%w: one of --policy or --name is required", types.ErrInvalidInput)
	}
	return lookupSaved(ctx, name)
}

func lookupSaved(ctx context.Context, name string) (types.FarePolicy, error) {
	cfg, _, policies, err := setup(ctx)
	if err != nil {
		return types.FarePolicy{}, err
	}
	defer policies.Close()

	ctx, cancel := withStoreTimeout(ctx, cfg)
	defer cancel()

	c, err := policies.Load(ctx)
	if err != nil {
		return types.FarePolicy{}, err
	}
	saved, ok := c.Find(name)
	if !ok {
		return types.FarePolicy{}, fmt.Errorf("%w: %q", types.ErrPolicyNotFound, name)
	}
	return saved.Policy, nil
}
