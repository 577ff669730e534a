package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kitforge/kitforge/backend-go/internal/document"
)

var ErrNotFound = errors.New("configuration not found")

//go:embed schema.sql
var schema string

// Snapshot is one saved version of a configuration.
type Snapshot struct {
	ID        string                  `json:"id"`
	Version   int                     `json:"version"`
	Document  *document.Configuration `json:"document"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Repository persists configuration versions.
type Repository interface {
	Save(ctx context.Context, id string, doc *document.Configuration) (int, error)
	Latest(ctx context.Context, id string) (*Snapshot, error)
}

// Store keeps every version of every configuration in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and checks the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Save appends a new version of the configuration and returns its number.
func (s *Store) Save(ctx context.Context, id string, doc *document.Configuration) (int, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal configuration: %w", err)
	}

	var version int
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", id); err != nil {
			return err
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO garment_configs (id, version, document)
			 SELECT $1, COALESCE(MAX(version), 0) + 1, $2 FROM garment_configs WHERE id = $1
			 RETURNING version`,
			id, docJSON,
		).Scan(&version)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("save configuration %s: %w", id, err)
	}
	return version, nil
}

// Latest returns the newest version of a configuration.
func (s *Store) Latest(ctx context.Context, id string) (*Snapshot, error) {
	var (
		snap    Snapshot
		docJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, version, document, created_at FROM garment_configs
		 WHERE id = $1 ORDER BY version DESC LIMIT 1`,
		id,
	).Scan(&snap.ID, &snap.Version, &docJSON, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get configuration %s: %w", id, err)
	}

	if err := json.Unmarshal(docJSON, &snap.Document); err != nil {
		return nil, fmt.Errorf("unmarshal configuration %s: %w", id, err)
	}
	return &snap, nil
}
