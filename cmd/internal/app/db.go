package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// sessionPoolIdle bounds how long an idle session-store connection is kept.
// A command issues a handful of token reads and writes, then exits.
const sessionPoolIdle = 30 * time.Second

// sessionPoolConfig derives the pool settings for the postgres session store.
// Connections are tagged with the store namespace so they are identifiable in
// pg_stat_activity when several clients share a database.
func sessionPoolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("session database url: %w", err)
	}

	if _, ok := pcfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		pcfg.ConnConfig.RuntimeParams["application_name"] = "glowguard:" + cfg.Store.Namespace
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = min(cfg.DBMinConns, pcfg.MaxConns)
	}
	pcfg.MaxConnIdleTime = sessionPoolIdle
	if cfg.HTTPTimeout > 0 && (pcfg.ConnConfig.ConnectTimeout == 0 || pcfg.ConnConfig.ConnectTimeout > cfg.HTTPTimeout) {
		pcfg.ConnConfig.ConnectTimeout = cfg.HTTPTimeout
	}
	return pcfg, nil
}

// openSessionPool connects the postgres session store and checks the server
// answers within the configured request timeout.
func openSessionPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := sessionPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx := ctx
	if cfg.HTTPTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.HTTPTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session database unreachable: %w", err)
	}
	return pool, nil
}
