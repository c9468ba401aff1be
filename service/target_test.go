package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidb-pool/model"
)

type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
	path string
}

func generateTestCA(t *testing.T, name string) *testCA {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name+"-ca.pem")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, f.Close())

	return &testCA{cert: cert, key: key, path: path}
}

func (ca *testCA) issueServerCert(t *testing.T, dnsName string) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func testConnectionConfig() model.ConnectionConfig {
	return model.ConnectionConfig{
		Host:         "127.0.0.1",
		Username:     "root",
		Password:     "secret",
		DatabaseName: "test_db",
		PoolOptions:  model.DefaultPoolOptions(),
	}
}

func TestConnectionTarget(t *testing.T) {
	target := NewConnectionTarget(testConnectionConfig())

	assert.Equal(t, "127.0.0.1:4000", target.Addr())
	assert.Empty(t, target.CAFile())
	assert.Equal(t, "root", target.cfg.User)
	assert.Equal(t, "secret", target.cfg.Passwd)
	assert.Equal(t, "test_db", target.cfg.DBName)
	assert.Equal(t, "tcp", target.cfg.Net)
	assert.Nil(t, target.cfg.TLS)
	assert.Empty(t, target.cfg.TLSConfig)

	dsn := target.String()
	assert.Contains(t, dsn, "root:[REDACTED]@tcp(127.0.0.1:4000)/test_db")
	assert.NotContains(t, dsn, "secret")

	_, err := target.Connector()
	require.NoError(t, err)
}

func TestConnectionTargetSSLCA(t *testing.T) {
	ca := generateTestCA(t, "tidb")
	cfg := testConnectionConfig()
	cfg.SSLCA = ca.path

	target := NewConnectionTarget(cfg)
	assert.Equal(t, ca.path, target.CAFile())
	// nothing is loaded until a connection is made
	assert.Nil(t, target.cfg.TLS)

	c := mysql.NewConfig()
	require.NoError(t, target.attachCA(context.Background(), c))
	require.NotNil(t, c.TLS)
	assert.NotNil(t, c.TLS.RootCAs)
	assert.True(t, c.TLS.InsecureSkipVerify)
	require.NotNil(t, c.TLS.VerifyConnection)

	leaf := ca.issueServerCert(t, "tidb.example")
	assert.NoError(t, c.TLS.VerifyConnection(tls.ConnectionState{PeerCertificates: []*x509.Certificate{leaf}}))

	other := generateTestCA(t, "other").issueServerCert(t, "tidb.example")
	err := c.TLS.VerifyConnection(tls.ConnectionState{PeerCertificates: []*x509.Certificate{other}})
	require.Error(t, err)
	assert.Equal(t, KindTLS, classify(err))

	assert.Error(t, c.TLS.VerifyConnection(tls.ConnectionState{}))
}

func TestLoadVerifyCAErrors(t *testing.T) {
	_, err := loadVerifyCA(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, KindTLS, classify(err))

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))
	_, err = loadVerifyCA(garbage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PEM certificates found")
	assert.Equal(t, KindTLS, classify(err))
}
