package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"tidb-pool/model"
)

// Option customizes BuildPoolFromConfig.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger for the build and for the pool it returns.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// BuildPoolFromConfig turns cfg into a pool. A lazy pool is returned without
// any network I/O; otherwise the pool opens and pings its minimum number of
// connections (at least one) before returning, and any failure comes back as
// a *PoolError matching ErrPoolConstruction. There is no retry.
func BuildPoolFromConfig(ctx context.Context, cfg model.ConnectionConfig, opts ...Option) (*Pool, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	lazy := cfg.PoolOptions.IsLazy
	log := o.log.With(zap.String("addr", cfg.Addr()), zap.String("database", cfg.DatabaseName))

	log.Info("initializing connection pool to TiDB", zap.Bool("lazy", lazy), zap.Bool("ssl_ca", cfg.SSLCA != ""))
	settings := NewPoolSettings(cfg.PoolOptions)
	log.Info("connection pool settings", settings.fields()...)

	target := NewConnectionTarget(cfg)
	connector, err := target.Connector()
	if err != nil {
		perr := newPoolError(opBuild, target.Addr(), err)
		log.Error("invalid connection target", zap.Error(perr))
		return nil, perr
	}

	p := newPool(sql.OpenDB(connector), settings, target.Addr(), cfg.DatabaseName, lazy, log)
	if !lazy {
		if err := p.warm(ctx); err != nil {
			_ = p.db.Close()
			perr := newPoolError(opBuild, target.Addr(), err)
			log.Error("failed to connect to TiDB server", zap.String("kind", string(perr.Kind)), zap.Error(err))
			return nil, perr
		}
	}

	log.Info("TiDB connection pool initialized", zap.Bool("lazy", lazy))
	return p, nil
}
