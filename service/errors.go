package service

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

var (
	// ErrPoolConstruction matches failures while building a pool, i.e. the
	// eager connection attempt of a non-lazy pool.
	ErrPoolConstruction = errors.New("pool construction failed")

	// ErrAcquire matches failures obtaining a connection from a built pool.
	ErrAcquire = errors.New("acquire connection failed")
)

// Kind groups connection failures by what the caller could do about them.
type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindTLS         Kind = "tls"
	KindAuth        Kind = "auth"
	KindDatabase    Kind = "database"
	KindTimeout     Kind = "timeout"
	KindOther       Kind = "other"
)

type op string

const (
	opBuild   op = "build"
	opAcquire op = "acquire"
)

// PoolError is returned by BuildPoolFromConfig and Pool.Acquire when the
// driver could not hand out a working connection.
type PoolError struct {
	Addr string
	Kind Kind
	Err  error

	op op
}

func newPoolError(o op, addr string, err error) *PoolError {
	return &PoolError{Addr: addr, Kind: classify(err), Err: err, op: o}
}

func (e *PoolError) Error() string {
	sentinel := ErrPoolConstruction
	if e.op == opAcquire {
		sentinel = ErrAcquire
	}
	return fmt.Sprintf("%v: %s (%s): %v", sentinel, e.Addr, e.Kind, e.Err)
}

func (e *PoolError) Unwrap() error { return e.Err }

func (e *PoolError) Is(target error) bool {
	switch target {
	case ErrPoolConstruction:
		return e.op == opBuild
	case ErrAcquire:
		return e.op == opAcquire
	}
	return false
}

func classify(err error) Kind {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlerr.ER_ACCESS_DENIED_ERROR:
			return KindAuth
		case mysqlerr.ER_BAD_DB_ERROR, mysqlerr.ER_DBACCESS_DENIED_ERROR:
			return KindDatabase
		}
		return KindOther
	}

	if isTLSError(err) {
		return KindTLS
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindUnreachable
	}
	return KindOther
}

func isTLSError(err error) bool {
	var (
		caErr        *caLoadError
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		authorityErr x509.UnknownAuthorityError
		invalidErr   x509.CertificateInvalidError
		hostErr      x509.HostnameError
	)
	return errors.Is(err, mysql.ErrNoTLS) ||
		errors.As(err, &caErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &hostErr)
}
