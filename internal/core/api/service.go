// Package api provides the HTTP surface for policies and fare computation.
package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/solatis/farekeeper/internal/core/config"
	"github.com/solatis/farekeeper/internal/core/store"
	"github.com/solatis/farekeeper/internal/fare"
	"github.com/solatis/farekeeper/internal/types"
)

// Service holds the dependencies shared by all handlers.
// Thin orchestration layer delegating to the store and the fare engine.
type Service struct {
	store  store.PolicyStore
	engine *fare.Engine
	cfg    *config.Config
	logger *slog.Logger
}

// NewService creates service instance with dependencies.
func NewService(policies store.PolicyStore, engine *fare.Engine, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if policies == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Service{
		store:  policies,
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// loadPolicies reads the collection under the configured store timeout.
func (s *Service) loadPolicies(ctx context.Context) (types.PolicyCollection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Store.Timeout)
	defer cancel()
	return s.store.Load(ctx)
}

// savePolicies replaces the collection under the configured store timeout.
func (s *Service) savePolicies(ctx context.Context, c types.PolicyCollection) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Store.Timeout)
	defer cancel()
	return s.store.Save(ctx, c)
}

// lookupPolicy returns the first saved policy with the given name.
func (s *Service) lookupPolicy(ctx context.Context, name string) (types.FarePolicy, error) {
	c, err := s.loadPolicies(ctx)
	if err != nil {
		return types.FarePolicy{}, err
	}
	saved, ok := c.Find(name)
	if !ok {
		return types.FarePolicy{}, fmt.Errorf("%w: %q", types.ErrPolicyNotFound, name)
	}
	return saved.Policy, nil
}

// computeETag hashes the encoded collection so clients can skip unchanged
// downloads. Same content always produces the same tag.
func computeETag(encoded []byte) string {
	return fmt.Sprintf(`"%x"`, sha256.Sum256(encoded))
}
