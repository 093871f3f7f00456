// Package store persists the named fare-policy collection.
//
// Two backends implement PolicyStore. FileStore keeps a single JSON
// document and commits every save with a staged write, verification and
// atomic rename. SQLStore keeps one row per policy and replaces the whole
// set inside a transaction. Both replace the full collection on every save;
// there is no incremental append or delete at this boundary.
//
// Each instance serializes its own Load/Save calls. Writers in separate
// processes are not coordinated: two processes saving the same location
// race at the read-modify-write level above the store.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/solatis/farekeeper/internal/core/logging"
	"github.com/solatis/farekeeper/internal/types"
)

// PolicyStore loads and replaces the saved-policy collection.
type PolicyStore interface {
	// Load returns the full collection. A store that was never written
	// returns an empty collection.
	Load(ctx context.Context) (types.PolicyCollection, error)

	// Save replaces the full collection. On failure the previously
	// committed collection is left intact.
	Save(ctx context.Context, c types.PolicyCollection) error

	// Close releases backend resources.
	Close() error
}

// Options configures Open.
type Options struct {
	Logger *slog.Logger

	// AutoMigrate applies embedded migrations when opening a SQL store.
	AutoMigrate bool
}

// Open selects a backend from the store URL.
// Supported forms: a plain path or file:///path (FileStore),
// sqlite://path and postgres://... (SQLStore).
func Open(ctx context.Context, storeURL string, opts Options) (PolicyStore, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	if !strings.Contains(storeURL, "://") {
		return openFile(storeURL, opts.Logger)
	}

	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		return openFile(path, opts.Logger)
	case "sqlite", "postgres":
		s, err := OpenSQLStore(ctx, storeURL, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store scheme: %s (expected file, sqlite or postgres)", u.Scheme)
	}
}

func openFile(path string, logger *slog.Logger) (PolicyStore, error) {
	s, err := NewFileStore(path, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// validateCollection checks every entry before anything is written.
func validateCollection(c types.PolicyCollection) error {
	for i, p := range c {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policies[%d]: %w", i, err)
		}
	}
	return nil
}
