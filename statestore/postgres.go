package statestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists state records in a single "raw" key/value
// table, upserting on conflict.
type PostgresStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// PostgresOptions configures a PostgresStore.
type PostgresOptions struct {
	DSN string
	// TableName is the raw table holding the records. Defaults to
	// "cortex_state".
	TableName string
}

// NewPostgresStore connects a pool and ensures the raw table exists.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("statestore: invalid postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("statestore: failed to connect to postgres: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "cortex_state"
	}

	s := &PostgresStore{pool: pool, tableName: tableName}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			tbl   TEXT  NOT NULL,
			key   TEXT  NOT NULL,
			value BYTEA NOT NULL,
			PRIMARY KEY (tbl, key)
		)`, s.tableName))
	if err != nil {
		return fmt.Errorf("statestore: failed to ensure schema: %w", err)
	}
	return nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, table, key string, value any) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (tbl, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (tbl, key) DO UPDATE SET value = EXCLUDED.value`,
		s.tableName), table, key, data)
	return err
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, table, key string, dst any) error {
	var data []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT value FROM %s WHERE tbl = $1 AND key = $2`, s.tableName),
		table, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return decode(data, dst)
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, table, key string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE tbl = $1 AND key = $2`, s.tableName),
		table, key)
	return err
}

// Keys implements Store.
func (s *PostgresStore) Keys(ctx context.Context, table string) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT key FROM %s WHERE tbl = $1`, s.tableName), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
