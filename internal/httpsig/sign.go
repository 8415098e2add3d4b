package httpsig

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// Algorithm is the only algorithm this package produces.
const Algorithm = "rsa-sha256"

// Sign returns the base64 RSA-SHA256 (PKCS#1 v1.5) signature of data.
func Sign(key *rsa.PrivateKey, data string) (string, error) {
	sum := sha256.Sum256([]byte(data))
	sig, err := rsa.SignPKCS1v15(nil, key, crypto.SHA256, sum[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature produced by Sign.
func Verify(key *rsa.PublicKey, data, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	sum := sha256.Sum256([]byte(data))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, sum[:], sig); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return nil
}

// Header formats the Signature header value.
func Header(keyID, signature string, names []string) string {
	return strings.Join([]string{
		`keyId="` + keyID + `"`,
		`algorithm="` + Algorithm + `"`,
		`headers="` + strings.Join(names, " ") + `"`,
		`signature="` + signature + `"`,
	}, ",")
}

// ParsePrivateKey decodes a PEM RSA private key in PKCS#8 or PKCS#1 form.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("parse private key: no PEM block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parse private key: %T is not an RSA key", parsed)
	}
	return key, nil
}

// ParsePublicKey decodes a PEM RSA public key in SPKI or PKCS#1 form.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("parse public key: no PEM block")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("parse public key: %T is not an RSA key", parsed)
	}
	return key, nil
}
