package gateway

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "sandbox gateway"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), key
}

func TestEncryptSecurityCredential(t *testing.T) {
	certPEM, key := selfSignedCert(t)

	encoded, err := EncryptSecurityCredential(certPEM, "Safaricom999!*!")
	require.NoError(t, err)

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "Safaricom999!*!", string(plain))

	_, err = EncryptSecurityCredential([]byte("not a cert"), "pw")
	assert.Error(t, err)

	_, err = EncryptSecurityCredential(certPEM, "")
	assert.Error(t, err)
}

func TestResolveSecurityCredential(t *testing.T) {
	got, err := ResolveSecurityCredential("pre-encrypted", "", "")
	require.NoError(t, err)
	assert.Equal(t, "pre-encrypted", got)

	_, err = ResolveSecurityCredential("", "", "pw")
	assert.Error(t, err)

	certPEM, _ := selfSignedCert(t)
	path := filepath.Join(t.TempDir(), "gateway.cer")
	require.NoError(t, os.WriteFile(path, certPEM, 0o600))

	got, err = ResolveSecurityCredential("", path, "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}
