package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/farekeeper/internal/core/db"
	"github.com/solatis/farekeeper/internal/types"
)

// policyRow mirrors the policies table.
type policyRow struct {
	Position int    `db:"position"`
	Name     string `db:"name"`
	Body     string `db:"body"`
	SavedAt  string `db:"saved_at"`
}

// SQLStore keeps one row per saved policy. Save deletes and reinserts the
// full set inside a single transaction so readers never see a partial
// collection.
type SQLStore struct {
	conn    *sqlx.DB
	queries *db.Queries
	logger  *slog.Logger
	mu      sync.Mutex
}

// OpenSQLStore connects to a sqlite:// or postgres:// URL.
func OpenSQLStore(ctx context.Context, storeURL string, opts Options) (*SQLStore, error) {
	logger := opts.Logger
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	conn, err := db.Open(ctx, storeURL)
	if err != nil {
		return nil, err
	}

	if opts.AutoMigrate {
		ran, err := db.MigrateUp(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate policy database: %w", err)
		}
		if len(ran) > 0 {
			logger.Info("applied migrations", "migrations", ran)
		}
	}

	s, err := NewSQLStore(conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open connection. The schema must already exist.
func NewSQLStore(conn *sqlx.DB, logger *slog.Logger) (*SQLStore, error) {
	queries, err := db.LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &SQLStore{
		conn:    conn,
		queries: queries,
		logger:  logger.With("store", "sql", "driver", conn.DriverName()),
	}, nil
}

// Load returns the collection in saved order.
func (s *SQLStore) Load(ctx context.Context) (types.PolicyCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []policyRow
	if err := s.queries.Select(ctx, "list-policies", &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCorruptStore, err)
	}

	c := make(types.PolicyCollection, 0, len(rows))
	for _, r := range rows {
		var policy types.FarePolicy
		if err := json.Unmarshal([]byte(r.Body), &policy); err != nil {
			return nil, fmt.Errorf("%w: policy %q at position %d: %v", types.ErrCorruptStore, r.Name, r.Position, err)
		}
		savedAt, err := time.Parse(time.RFC3339Nano, r.SavedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: policy %q at position %d: savedAt: %v", types.ErrCorruptStore, r.Name, r.Position, err)
		}
		c = append(c, types.SavedPolicy{Name: r.Name, Policy: policy, SavedAt: savedAt})
	}

	s.logger.Debug("policies loaded", "count", len(c))
	return c, nil
}

// Save replaces every row with c.
func (s *SQLStore) Save(ctx context.Context, c types.PolicyCollection) error {
	if err := validateCollection(c); err != nil {
		return err
	}

	rows := make([]policyRow, len(c))
	for i, p := range c {
		body, err := json.Marshal(p.Policy)
		if err != nil {
			return fmt.Errorf("%w: encode policy %q: %v", types.ErrWriteFailed, p.Name, err)
		}
		rows[i] = policyRow{
			Position: i,
			Name:     p.Name,
			Body:     string(body),
			SavedAt:  p.SavedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.queries.InTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, "delete-policies"); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := tx.Exec(ctx, "insert-policy", r.Position, r.Name, r.Body, r.SavedAt); err != nil {
				return fmt.Errorf("insert %q: %w", r.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("policy save failed", "error", err)
		return fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
	}

	s.logger.Info("policies saved", "count", len(c))
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.conn.Close()
}
