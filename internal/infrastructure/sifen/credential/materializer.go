// Package credential implements the Credential Materializer (C1): loading a
// PKCS#12 bundle and exposing the private key and certificate for both
// XMLDSig signing and mTLS client authentication.
package credential

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
	sslmatepkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
)

// Material holds the decoded key pair for one PKCS#12 bundle.
type Material struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// Materializer loads PKCS#12 bundles and provisions scoped mTLS key files.
type Materializer interface {
	Load(pfxPath, password string) (*Material, error)
	ProvisionMTLSFiles(m *Material) (*MTLSFiles, error)
}

type materializer struct{}

func NewMaterializer() Materializer {
	return &materializer{}
}

// Load decrypts the PKCS#12 bundle at pfxPath. golang.org/x/crypto/pkcs12 is
// tried first since it is the lighter, zero-extra-dependency path used
// elsewhere in this codebase's certificate handling; bundles it rejects
// (modern PBES2-encrypted .p12 files produced by recent OpenSSL) fall back to
// software.sslmate.com/src/go-pkcs12.
func (m *materializer) Load(pfxPath, password string) (*Material, error) {
	raw, err := os.ReadFile(pfxPath)
	if err != nil {
		return nil, errs.NewCredentialError(fmt.Sprintf("read pkcs12 file %s", pfxPath), err)
	}

	privateKey, cert, err := pkcs12.Decode(raw, password)
	if err != nil {
		cert, privateKey, err = decodeWithFallback(raw, password)
		if err != nil {
			return nil, errs.NewCredentialError("decode pkcs12 bundle", err)
		}
		return &Material{PrivateKey: privateKey, Certificate: cert}, nil
	}

	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, errs.NewCredentialError("pkcs12 private key is not RSA", nil)
	}
	return &Material{PrivateKey: rsaKey, Certificate: cert}, nil
}

func decodeWithFallback(raw []byte, password string) (*x509.Certificate, *rsa.PrivateKey, error) {
	privateKey, cert, _, err := sslmatepkcs12.DecodeChain(raw, password)
	if err != nil {
		return nil, nil, err
	}
	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("pkcs12 private key is not RSA")
	}
	return cert, rsaKey, nil
}

// MTLSFiles are scoped temporary PEM files for the HTTP transport layer.
// Close removes both files unconditionally; callers must defer it
// immediately after a successful ProvisionMTLSFiles call.
type MTLSFiles struct {
	KeyPath  string
	CertPath string
}

// Close deletes the temporary key and certificate files. It is safe to call
// multiple times and never returns an error so it can always be deferred.
func (f *MTLSFiles) Close() {
	if f.KeyPath != "" {
		_ = os.Remove(f.KeyPath)
	}
	if f.CertPath != "" {
		_ = os.Remove(f.CertPath)
	}
}

// ProvisionMTLSFiles writes the key and certificate to scoped temporary
// files, restricted to the owner, for handing to an *http.Transport that
// requires file paths. Callers must call Close on the result on every exit
// path, including errors further down the call chain.
func (m *materializer) ProvisionMTLSFiles(mat *Material) (*MTLSFiles, error) {
	keyFile, err := os.CreateTemp("", "sifen-key-*.pem")
	if err != nil {
		return nil, errs.NewCredentialError("create temp key file", err)
	}
	keyPath := keyFile.Name()
	_ = keyFile.Chmod(0o600)

	keyBytes, err := x509.MarshalPKCS8PrivateKey(mat.PrivateKey)
	if err != nil {
		keyFile.Close()
		os.Remove(keyPath)
		return nil, errs.NewCredentialError("marshal private key", err)
	}
	if err := pem.Encode(keyFile, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes}); err != nil {
		keyFile.Close()
		os.Remove(keyPath)
		return nil, errs.NewCredentialError("write key pem", err)
	}
	keyFile.Close()

	certFile, err := os.CreateTemp("", "sifen-cert-*.pem")
	if err != nil {
		os.Remove(keyPath)
		return nil, errs.NewCredentialError("create temp cert file", err)
	}
	certPath := certFile.Name()
	_ = certFile.Chmod(0o600)
	if err := pem.Encode(certFile, &pem.Block{Type: "CERTIFICATE", Bytes: mat.Certificate.Raw}); err != nil {
		certFile.Close()
		os.Remove(keyPath)
		os.Remove(certPath)
		return nil, errs.NewCredentialError("write cert pem", err)
	}
	certFile.Close()

	return &MTLSFiles{KeyPath: keyPath, CertPath: certPath}, nil
}
