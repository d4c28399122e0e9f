// Package app wires the glowguard CLI runtime: config, logging, credential
// storage, the authenticated API client and the commands built on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"glowguard/cmd/internal/api"
	"glowguard/cmd/internal/apiclient"
	"glowguard/cmd/internal/session"
	"glowguard/cmd/security/token"

	"github.com/go-redis/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// App owns the session store, the API client and their resources.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool

	sess     *session.Session
	client   *apiclient.Client
	api      *api.Client
	registry *prometheus.Registry

	invalidated atomic.Bool
}

// Option customizes New.
type Option func(*appOptions)

type appOptions struct {
	store   session.Store
	clientO []apiclient.Option
}

// WithStore injects a session store instead of building one from config.
func WithStore(s session.Store) Option {
	return func(o *appOptions) { o.store = s }
}

// WithClientOptions appends options to the API client.
func WithClientOptions(opts ...apiclient.Option) Option {
	return func(o *appOptions) { o.clientO = append(o.clientO, opts...) }
}

// New constructs a fully wired App from config and logger.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}
	var o appOptions
	for _, fn := range opts {
		fn(&o)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
	}

	st := o.store
	if st == nil {
		var err error
		st, a.dbPool, err = newStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}
	a.sess = session.New(st)

	clientOpts := []apiclient.Option{
		apiclient.WithLogger(log),
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithRetries(cfg.Retries),
		apiclient.WithMetrics(apiclient.NewMetrics(a.registry)),
		apiclient.OnSessionInvalidated(a.onSessionInvalidated),
	}
	client, err := apiclient.New(cfg.APIBaseURL, a.sess, append(clientOpts, o.clientO...)...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.client = client
	a.api = api.New(client, log)

	log.Debug("app.ready", "api", client.BaseURL(), "store", string(cfg.Store.Backend))
	return a, nil
}

// API returns the typed endpoint wrappers.
func (a *App) API() *api.Client { return a.api }

// Session returns the credential session.
func (a *App) Session() *session.Session { return a.sess }

// Registry returns the metrics registry the client reports to.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// SessionInvalidated reports whether a refresh failure cleared the session
// during this App's lifetime.
func (a *App) SessionInvalidated() bool { return a.invalidated.Load() }

func (a *App) onSessionInvalidated(err error) {
	a.invalidated.Store(true)
	a.log.Warn("app.session.invalidated", "err", err)
}

// Close releases the session store and database pool.
func (a *App) Close() error {
	var errs []error
	if a.sess != nil {
		errs = append(errs, a.sess.Close())
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
	return errors.Join(errs...)
}

// newStore builds the configured session store. The pool is returned when
// the app owns one (postgres backend).
func newStore(ctx context.Context, cfg Config, log Logger) (session.Store, *pgxpool.Pool, error) {
	sc := cfg.Store
	switch sc.Backend {
	case session.BackendMemory:
		log.Debug("store.memory")
		return session.NewMemoryStore(), nil, nil

	case session.BackendFile:
		var sealer session.Sealer
		if sc.Passphrase != "" {
			params, err := token.Argon2idParamsFromEnv()
			if err != nil {
				return nil, nil, err
			}
			s, err := token.NewPassphraseSealer(sc.Passphrase, params)
			if err != nil {
				return nil, nil, err
			}
			sealer = s
		}
		st, err := session.NewFileStore(sc.FilePath, sealer)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("store.file", "path", st.Path(), "sealed", sealer != nil)
		return st, nil, nil

	case session.BackendRedis:
		st, err := session.NewRedisStore(ctx, redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		}, sc.Namespace)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("store.redis", "addr", sc.RedisAddr, "namespace", sc.Namespace)
		return st, nil, nil

	case session.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("%w: GLOWGUARD_DATABASE_URL is required for the postgres store", session.ErrConfig)
		}
		pool, err := openSessionPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		st, err := session.NewPostgresStore(pool, sc.Namespace)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Debug("store.postgres", "namespace", sc.Namespace)
		return st, pool, nil
	}
	return nil, nil, session.ErrConfig
}
