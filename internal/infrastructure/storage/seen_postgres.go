package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"DealScanner/internal/ports"
)

var tableNameExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSeenStore keeps seen listing ids in a table. Saves only ever add rows,
// so several scanners sharing the table cannot lose each other's updates.
type PostgresSeenStore struct {
	db    *sql.DB
	table string
	psql  sq.StatementBuilderType
}

var _ ports.SeenStore = (*PostgresSeenStore)(nil)

// NewPostgresSeenStore wires a sql.DB implementation.
func NewPostgresSeenStore(db *sql.DB, table string) (*PostgresSeenStore, error) {
	if !tableNameExpr.MatchString(table) {
		return nil, fmt.Errorf("invalid seen table name %q", table)
	}
	return &PostgresSeenStore{
		db:    db,
		table: table,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// OpenPostgresSeenStore connects, pings with retries and creates the table if needed.
func OpenPostgresSeenStore(ctx context.Context, dsn, table string) (*PostgresSeenStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	store, err := NewPostgresSeenStore(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return store, nil
}

// Migrate creates the seen table.
func (s *PostgresSeenStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			listing_id TEXT        PRIMARY KEY,
			seen_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table))
	return err
}

// Load reads every stored id.
func (s *PostgresSeenStore) Load(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := s.psql.Select("listing_id").From(s.table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build seen query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		seen[id] = struct{}{}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return seen, nil
}

// Save inserts ids that are not stored yet.
func (s *PostgresSeenStore) Save(ctx context.Context, seen map[string]struct{}) error {
	if len(seen) == 0 {
		return nil
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	query, args, err := s.insertQuery(ids)
	if err != nil {
		return fmt.Errorf("build seen insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert seen: %w", err)
	}
	return nil
}

func (s *PostgresSeenStore) insertQuery(ids []string) (string, []interface{}, error) {
	return s.psql.Insert(s.table).
		Columns("listing_id").
		Select(sq.Select().Column(sq.Expr("unnest(?::text[])", pq.StringArray(ids)))).
		Suffix("ON CONFLICT (listing_id) DO NOTHING").
		ToSql()
}

// Close releases the connection pool.
func (s *PostgresSeenStore) Close() error {
	return s.db.Close()
}
