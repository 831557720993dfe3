package gateway

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// EncryptSecurityCredential encrypts the initiator password with the public key
// of the gateway certificate (PEM or DER), as required by disbursement requests.
func EncryptSecurityCredential(certData []byte, initiatorPassword string) (string, error) {
	if initiatorPassword == "" {
		return "", errors.New("initiator password is empty")
	}

	der := certData
	if block, _ := pem.Decode(certData); block != nil {
		der = block.Bytes
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return "", fmt.Errorf("failed to parse gateway certificate: %w", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("gateway certificate key is %T, want RSA", cert.PublicKey)
	}

	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(initiatorPassword))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt initiator password: %w", err)
	}

	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// ResolveSecurityCredential returns the configured pre-encrypted credential, or
// encrypts the initiator password with the certificate at certPath.
func ResolveSecurityCredential(preEncrypted, certPath, initiatorPassword string) (string, error) {
	if preEncrypted != "" {
		return preEncrypted, nil
	}
	if certPath == "" {
		return "", errors.New("neither a security credential nor a certificate path is configured")
	}
	certData, err := os.ReadFile(certPath) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("failed to read gateway certificate: %w", err)
	}
	return EncryptSecurityCredential(certData, initiatorPassword)
}
