package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/solatis/farekeeper/internal/core/api"
	"github.com/solatis/farekeeper/internal/core/config"
	"github.com/solatis/farekeeper/internal/core/server"
	"github.com/solatis/farekeeper/internal/core/store"
	"github.com/solatis/farekeeper/internal/fare"
	"github.com/solatis/farekeeper/internal/types"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and gRPC health service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "listen host")
	serveCmd.Flags().Int("port", 8080, "HTTP API port")
	serveCmd.Flags().Int("grpc-port", 50051, "gRPC health port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, logger, policies, err := setup(ctx)
	if err != nil {
		return err
	}
	defer policies.Close()

	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	existing, err := startupLoad(ctx, cfg, policies, logger)
	if err != nil {
		return fmt.Errorf("failed to load policy store: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	service, err := api.NewService(policies, fare.NewEngine(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(cfg.Server.Host, cfg.Server.Port, api.NewRouter(service), cfg.Server.RequestTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	healthServer, err := server.NewHealthServer(cfg.Server.Host, cfg.Server.GRPCPort, logger)
	if err != nil {
		return fmt.Errorf("failed to create grpc server: %w", err)
	}

	if err := httpServer.Listen(); err != nil {
		return err
	}
	if err := healthServer.Listen(); err != nil {
		return err
	}

	logger.Info("starting farekeeper",
		"version", Version,
		"http_addr", httpServer.Addr(),
		"grpc_addr", healthServer.Addr(),
		"store", cfg.Store.URL,
		"policies", existing,
	)

	errChan := make(chan error, 2)
	go func() { errChan <- httpServer.Serve() }()
	go func() { errChan <- healthServer.Serve() }()
	healthServer.SetServing(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case serveErr = <-errChan:
		logger.Error("server stopped unexpectedly", "error", serveErr)
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout+5*time.Second)
	defer cancel()

	healthServer.SetServing(false)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("grpc shutdown failed", "error", err)
	}

	return serveErr
}

// applyServeFlags overrides listen settings from flags and validates the
// result, so flag values get the same checks as file and env values.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("grpc-port") {
		port, _ := cmd.Flags().GetInt("grpc-port")
		cfg.Server.GRPCPort = port
	}
	return config.Validate(cfg)
}

// startupLoad reads the store once before serving and returns the policy
// count. A corrupt store is logged and served anyway: GET /api/policies then
// reports it as an empty, error-flagged collection until a save repairs it.
func startupLoad(ctx context.Context, cfg *config.Config, policies store.PolicyStore, logger *slog.Logger) (int, error) {
	loadCtx, cancel := withStoreTimeout(ctx, cfg)
	defer cancel()

	existing, err := policies.Load(loadCtx)
	if errors.Is(err, types.ErrCorruptStore) {
		logger.Error("policy store is corrupt, serving with an empty collection", "store", cfg.Store.URL, "error", err)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(existing), nil
}
