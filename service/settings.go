package service

import (
	"time"

	"go.uber.org/zap"

	"tidb-pool/model"
)

// PoolSettings is PoolOptions with the second counts turned into durations.
type PoolSettings struct {
	MaxConnections int
	MinConnections int
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
	MaxLifetime    time.Duration
}

func NewPoolSettings(o model.PoolOptions) PoolSettings {
	return PoolSettings{
		MaxConnections: o.MaxConnections,
		MinConnections: o.MinConnections,
		AcquireTimeout: seconds(o.AcquireTimeout),
		IdleTimeout:    seconds(o.IdleTimeout),
		MaxLifetime:    seconds(o.MaxLifetime),
	}
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

// warmCount is how many connections an eager build opens: at least one,
// never more than the pool may hold.
func (s PoolSettings) warmCount() int {
	n := s.MinConnections
	if n < 1 {
		n = 1
	}
	if s.MaxConnections > 0 && n > s.MaxConnections {
		n = s.MaxConnections
	}
	return n
}

func (s PoolSettings) fields() []zap.Field {
	return []zap.Field{
		zap.Int("max_connections", s.MaxConnections),
		zap.Int("min_connections", s.MinConnections),
		zap.Duration("acquire_timeout", s.AcquireTimeout),
		zap.Duration("idle_timeout", s.IdleTimeout),
		zap.Duration("max_lifetime", s.MaxLifetime),
	}
}
