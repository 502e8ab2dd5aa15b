package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyPair generates a self-signed certificate and its key in PEM form.
func testKeyPair(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "flotilla-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestCreateTLSConfiguration_FullMaterial(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t)
	caPEM, _ := testKeyPair(t)

	config, err := CreateTLSConfiguration(caPEM, certPEM, keyPEM, false, false)
	require.NoError(t, err)

	assert.Len(t, config.Certificates, 1)
	assert.NotNil(t, config.RootCAs)
	assert.False(t, config.InsecureSkipVerify)
}

func TestCreateTLSConfiguration_SkipBoth(t *testing.T) {
	config, err := CreateTLSConfiguration(nil, nil, nil, true, true)
	require.NoError(t, err)

	assert.Empty(t, config.Certificates)
	assert.Nil(t, config.RootCAs)
	assert.True(t, config.InsecureSkipVerify)
}

func TestCreateTLSConfiguration_SkipClientVerifyOnly(t *testing.T) {
	caPEM, _ := testKeyPair(t)

	config, err := CreateTLSConfiguration(caPEM, nil, nil, true, false)
	require.NoError(t, err)

	assert.Empty(t, config.Certificates)
	assert.NotNil(t, config.RootCAs)
	assert.False(t, config.InsecureSkipVerify)
}

func TestCreateTLSConfiguration_InvalidKeyPair(t *testing.T) {
	caPEM, _ := testKeyPair(t)

	_, err := CreateTLSConfiguration(caPEM, []byte("garbage"), []byte("garbage"), false, false)
	assert.Error(t, err)
}

func TestCreateTLSConfiguration_MismatchedKeyPair(t *testing.T) {
	certPEM, _ := testKeyPair(t)
	_, otherKeyPEM := testKeyPair(t)

	_, err := CreateTLSConfiguration(nil, certPEM, otherKeyPEM, false, true)
	assert.Error(t, err)
}

func TestCreateTLSConfiguration_InvalidCA(t *testing.T) {
	_, err := CreateTLSConfiguration([]byte("not a pem block"), nil, nil, true, false)
	assert.Error(t, err)
}
