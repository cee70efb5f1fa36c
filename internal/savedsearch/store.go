// Package savedsearch persists search state (query configuration plus the
// flat constraint list) in PostgreSQL so it can be rehydrated later.
package savedsearch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cms-query-workers/internal/jcrquery"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrNotFound = errors.New("saved search not found")

// Schema creates the table used by Store.
const Schema = `CREATE TABLE IF NOT EXISTS saved_searches (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    config      JSONB NOT NULL,
    constraints JSONB NOT NULL,
    joiners     JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	insertQuery = `INSERT INTO saved_searches (id, name, config, constraints, joiners, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	selectQuery = `SELECT name, config, constraints, joiners, created_at
FROM saved_searches
WHERE id = $1`
)

// SavedSearch is one persisted search.
type SavedSearch struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Config      jcrquery.Config            `json:"config"`
	Constraints []jcrquery.Constraint      `json:"constraints"`
	Joiners     map[string]jcrquery.Joiner `json:"joiners,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Save snapshots the builder. Categories are not stored separately: their
// seeded constraints are already part of the constraint list.
func (s *Store) Save(ctx context.Context, name string, b *jcrquery.Builder) (*SavedSearch, error) {
	cfg := b.Config()
	cfg.Categories = nil
	constraints := b.Constraints()

	joiners := make(map[string]jcrquery.Joiner)
	for _, c := range constraints {
		if j := b.Joiner(c.Prop); j != jcrquery.DefaultJoiner {
			joiners[c.Prop] = j
		}
	}

	saved := &SavedSearch{
		ID:          uuid.NewString(),
		Name:        name,
		Config:      cfg,
		Constraints: constraints,
		Joiners:     joiners,
		CreatedAt:   s.now(),
	}

	cfgJSON, err := json.Marshal(saved.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	consJSON, err := json.Marshal(saved.Constraints)
	if err != nil {
		return nil, fmt.Errorf("marshal constraints: %w", err)
	}
	joinJSON, err := json.Marshal(saved.Joiners)
	if err != nil {
		return nil, fmt.Errorf("marshal joiners: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, insertQuery, saved.ID, saved.Name, cfgJSON, consJSON, joinJSON, saved.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return nil, fmt.Errorf("insert saved search (%s): %w", pqErr.Code.Name(), err)
		}
		return nil, fmt.Errorf("insert saved search: %w", err)
	}
	return saved, nil
}

func (s *Store) Get(ctx context.Context, id string) (*SavedSearch, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	saved := SavedSearch{ID: id}
	var cfgJSON, consJSON, joinJSON []byte
	err := s.db.QueryRowContext(ctx, selectQuery, id).Scan(&saved.Name, &cfgJSON, &consJSON, &joinJSON, &saved.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query saved search: %w", err)
	}

	if err := json.Unmarshal(cfgJSON, &saved.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal(consJSON, &saved.Constraints); err != nil {
		return nil, fmt.Errorf("decode constraints: %w", err)
	}
	if len(joinJSON) > 0 {
		if err := json.Unmarshal(joinJSON, &saved.Joiners); err != nil {
			return nil, fmt.Errorf("decode joiners: %w", err)
		}
	}
	return &saved, nil
}

// Rehydrate rebuilds a builder from a saved search. Constraints are
// replayed in their stored order, so enumeration order survives the trip.
func (s *Store) Rehydrate(ctx context.Context, id string) (*jcrquery.Builder, error) {
	saved, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return saved.Builder()
}

// Builder constructs a builder from the saved state.
func (ss *SavedSearch) Builder() (*jcrquery.Builder, error) {
	cfg := ss.Config
	cfg.Categories = nil
	b, err := jcrquery.NewBuilder(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.SetConstraints(ss.Constraints); err != nil {
		return nil, err
	}
	for prop, j := range ss.Joiners {
		if err := b.SetConstraintJoiner(prop, j); err != nil {
			return nil, err
		}
	}
	return b, nil
}
