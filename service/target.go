package service

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql/driver"
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"tidb-pool/model"
)

// ConnectionTarget describes where and how the pool dials: endpoint,
// credentials, database and the optional CA trust anchor.
type ConnectionTarget struct {
	cfg    *mysql.Config
	caFile string
}

// NewConnectionTarget maps cfg onto a driver config. It performs no I/O; a
// configured CA file is only read when a connection is being established.
func NewConnectionTarget(cfg model.ConnectionConfig) *ConnectionTarget {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password.Reveal()
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	mc.DBName = cfg.DatabaseName
	mc.ParseTime = true
	mc.Loc = time.UTC

	t := &ConnectionTarget{cfg: mc, caFile: cfg.SSLCA}
	if t.caFile != "" {
		// BeforeConnect only stores the hook, it cannot fail
		_ = mc.Apply(mysql.BeforeConnect(t.attachCA))
	}
	return t
}

// Addr is the host:port being dialed.
func (t *ConnectionTarget) Addr() string { return t.cfg.Addr }

// CAFile is the configured trust anchor path, empty when none is set.
func (t *ConnectionTarget) CAFile() string { return t.caFile }

// String renders the target as a DSN with the password masked.
func (t *ConnectionTarget) String() string {
	c := t.cfg.Clone()
	if c.Passwd != "" {
		c.Passwd = model.Secret(c.Passwd).String()
	}
	return c.FormatDSN()
}

// Connector builds the database/sql connector for this target.
func (t *ConnectionTarget) Connector() (driver.Connector, error) {
	return mysql.NewConnector(t.cfg)
}

func (t *ConnectionTarget) attachCA(_ context.Context, c *mysql.Config) error {
	tlsCfg, err := loadVerifyCA(t.caFile)
	if err != nil {
		return err
	}
	c.TLS = tlsCfg
	return nil
}

// caLoadError marks failures reading or parsing the CA bundle.
type caLoadError struct {
	path string
	err  error
}

func (e *caLoadError) Error() string { return fmt.Sprintf("load ssl ca %s: %v", e.path, e.err) }

func (e *caLoadError) Unwrap() error { return e.err }

// loadVerifyCA returns a TLS config that checks the server chain against the
// bundle at path without checking the server hostname.
func loadVerifyCA(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, &caLoadError{path: path, err: err}
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, &caLoadError{path: path, err: errors.New("no PEM certificates found")}
	}

	return &tls.Config{
		RootCAs: roots,
		// chain verification happens in VerifyConnection
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return verifyChain(roots, cs)
		},
	}, nil
}

func verifyChain(roots *x509.CertPool, cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("tls: server presented no certificates")
	}
	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
	}
	for _, c := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(c)
	}
	_, err := cs.PeerCertificates[0].Verify(opts)
	return err
}
