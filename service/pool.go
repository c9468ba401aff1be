package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"tidb-pool/model"
)

// Pool is a TiDB connection pool built from a ConnectionConfig. Connection
// lifecycle is owned by database/sql; Pool adds the acquire timeout and
// the warm-up of eager pools.
type Pool struct {
	db       *sqlx.DB
	settings PoolSettings
	addr     string
	database string
	lazy     bool
	log      *zap.Logger
}

func newPool(db *sql.DB, settings PoolSettings, addr, database string, lazy bool, log *zap.Logger) *Pool {
	db.SetMaxOpenConns(settings.MaxConnections)
	db.SetMaxIdleConns(settings.MaxConnections)
	db.SetConnMaxIdleTime(settings.IdleTimeout)
	db.SetConnMaxLifetime(settings.MaxLifetime)

	return &Pool{
		db:       sqlx.NewDb(db, "mysql"),
		settings: settings,
		addr:     addr,
		database: database,
		lazy:     lazy,
		log:      log,
	}
}

// DB exposes the underlying handle for queries.
func (p *Pool) DB() *sqlx.DB { return p.db }

func (p *Pool) Settings() PoolSettings { return p.settings }

func (p *Pool) Lazy() bool { return p.lazy }

func (p *Pool) Addr() string { return p.addr }

func (p *Pool) Stats() sql.DBStats { return p.db.Stats() }

// Acquire takes a dedicated connection, waiting at most the acquire timeout.
// The caller must Close it to return it to the pool.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	ctx, cancel := p.acquireContext(ctx)
	defer cancel()

	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, newPoolError(opAcquire, p.addr, err)
	}
	return conn, nil
}

// Ping checks that a connection can be acquired and answers.
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return newPoolError(opAcquire, p.addr, err)
	}
	return nil
}

// Version reports the server version string.
func (p *Pool) Version(ctx context.Context) (string, error) {
	const query = "SELECT VERSION()"
	var version string
	start := time.Now()
	err := p.db.GetContext(ctx, &version, query)
	p.logStatement(query, 0, start, err)
	if err != nil {
		return "", err
	}
	return version, nil
}

// Count runs a single-column COUNT query.
func (p *Pool) Count(ctx context.Context, query string, args ...any) (model.Count, error) {
	var n model.Count
	start := time.Now()
	err := p.db.GetContext(ctx, &n, query, args...)
	p.logStatement(query, len(args), start, err)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// IDs runs a single-column id query.
func (p *Pool) IDs(ctx context.Context, query string, args ...any) ([]model.ID, error) {
	var ids []model.ID
	start := time.Now()
	err := p.db.SelectContext(ctx, &ids, query, args...)
	p.logStatement(query, len(args), start, err)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Collector exports the pool's database/sql statistics to prometheus,
// labelled with the database name.
func (p *Pool) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(p.db.DB, p.database)
}

func (p *Pool) Close() error {
	p.log.Info("closing connection pool")
	return p.db.Close()
}

// logStatement records executed SQL at debug level. Bound arguments are
// counted, never logged.
func (p *Pool) logStatement(query string, args int, start time.Time, err error) {
	if ce := p.log.Check(zap.DebugLevel, "executed statement"); ce != nil {
		ce.Write(
			zap.String("statement", query),
			zap.Int("args", args),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
}

func (p *Pool) acquireContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.settings.AcquireTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.settings.AcquireTimeout)
}

// warm opens warmCount connections at once, pings each, and hands them back
// to the pool as idle connections.
func (p *Pool) warm(ctx context.Context) error {
	ctx, cancel := p.acquireContext(ctx)
	defer cancel()

	n := p.settings.warmCount()
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < n; i++ {
		c, err := p.db.Conn(ctx)
		if err != nil {
			return err
		}
		conns = append(conns, c)
		if err := c.PingContext(ctx); err != nil {
			return err
		}
	}
	p.log.Debug("warmed connections", zap.Int("count", n))
	return nil
}
