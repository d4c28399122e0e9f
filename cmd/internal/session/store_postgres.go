package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (glowguard.session_slots).
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool, namespace string) (*PostgresStore, error) {
	if pool == nil || namespace == "" {
		return nil, ErrConfig
	}
	return &PostgresStore{pool: pool, namespace: namespace}, nil
}

// EnsureSchema creates the slot table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS glowguard;
		CREATE TABLE IF NOT EXISTS glowguard.session_slots (
			namespace  text        NOT NULL,
			slot       text        NOT NULL,
			value      text        NOT NULL,
			updated_at timestamptz NOT NULL,
			PRIMARY KEY (namespace, slot)
		)
	`)
	return storeErr("postgres", "ensure_schema", err)
}

// Close is a noop: the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Get returns the slot value or ErrSlotEmpty.
func (s *PostgresStore) Get(ctx context.Context, slot Slot) (string, error) {
	if err := checkSlots(slot); err != nil {
		return "", err
	}

	var v string
	err := s.pool.QueryRow(ctx, `
		SELECT value
		FROM glowguard.session_slots
		WHERE namespace = $1 AND slot = $2
	`, s.namespace, string(slot)).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSlotEmpty
	}
	if err != nil {
		return "", storeErr("postgres", "get", err)
	}
	return v, nil
}

// Set upserts every value in one transaction.
func (s *PostgresStore) Set(ctx context.Context, values map[Slot]string) error {
	if err := checkValues(values); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	now := time.Now().UTC()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for k, v := range values {
			if _, err := tx.Exec(ctx, `
				INSERT INTO glowguard.session_slots (namespace, slot, value, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (namespace, slot)
				DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
			`, s.namespace, string(k), v, now); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr("postgres", "set", err)
}

// Delete removes the named slots.
func (s *PostgresStore) Delete(ctx context.Context, slots ...Slot) error {
	if err := checkSlots(slots...); err != nil {
		return err
	}
	if len(slots) == 0 {
		return nil
	}

	names := make([]string, 0, len(slots))
	for _, k := range slots {
		names = append(names, string(k))
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM glowguard.session_slots
		WHERE namespace = $1 AND slot = ANY($2)
	`, s.namespace, names)
	return storeErr("postgres", "delete", err)
}
