package model

import (
	"net"
	"strconv"
)

// DefaultPort is the MySQL-protocol port TiDB listens on out of the box.
const DefaultPort = 4000

// Config is the root of a pool configuration document.
type Config struct {
	TiDB ConnectionConfig `toml:"tidb" yaml:"tidb"`
}

// ConnectionConfig is the [tidb] section: where to connect, as whom, and
// how the resulting pool is tuned.
type ConnectionConfig struct {
	Host         string      `toml:"host" yaml:"host"`
	Port         int         `toml:"port" yaml:"port"`
	Username     string      `toml:"username" yaml:"username"`
	Password     Secret      `toml:"password" yaml:"password"`
	DatabaseName string      `toml:"databaseName" yaml:"databaseName"`
	SSLCA        string      `toml:"sslCa,omitempty" yaml:"sslCa,omitempty"` // path to a PEM CA bundle
	PoolOptions  PoolOptions `toml:"pool_options" yaml:"pool_options"`
}

// Addr returns host:port, falling back to DefaultPort when Port is unset.
func (c ConnectionConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// PoolOptions is the [tidb.pool_options] section. Timeouts are whole seconds;
// nothing here checks that the values are sensible relative to each other.
type PoolOptions struct {
	MaxConnections int   `toml:"maxConnections" yaml:"maxConnections"`
	MinConnections int   `toml:"minConnections" yaml:"minConnections"`
	AcquireTimeout int64 `toml:"acquireTimeout" yaml:"acquireTimeout"`
	IdleTimeout    int64 `toml:"idleTimeout" yaml:"idleTimeout"`
	MaxLifetime    int64 `toml:"maxLifetime" yaml:"maxLifetime"`
	IsLazy         bool  `toml:"isLazy" yaml:"isLazy"`
}

// DefaultPoolOptions returns the tuning used when building a config in code.
// Documents must still spell every option out.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConnections: 10,
		MinConnections: 1,
		AcquireTimeout: 30,
		IdleTimeout:    300,
		MaxLifetime:    1800,
		IsLazy:         true,
	}
}

// Redacted returns a copy whose password renders as the redaction marker
// even when encoded.
func (c Config) Redacted() Config {
	c.TiDB.Password = redacted
	return c
}
