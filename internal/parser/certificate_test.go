package parser

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

	"github.com/icao-pkd/pkd/internal/core"
)

func generateSelfSignedCSCADER(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CSCA", Country: []string{"DE"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return der
}

func TestParseCertificateFileDER(t *testing.T) {
	der := generateSelfSignedCSCADER(t)
	result, err := parseCertificateFile(core.FormatDER, der, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(result.Certificates))
	}
	if result.Certificates[0].Kind != core.KindCSCA {
		t.Fatalf("expected inferred CSCA kind, got %s", result.Certificates[0].Kind)
	}
}

func TestParseCertificateFileDERWithKindHint(t *testing.T) {
	der := generateSelfSignedCSCADER(t)
	result, err := parseCertificateFile(core.FormatDER, der, core.KindDSC)
	if err != nil {
		t.Fatal(err)
	}
	if result.Certificates[0].Kind != core.KindDSC {
		t.Fatalf("expected hinted kind DSC, got %s", result.Certificates[0].Kind)
	}
}

func TestParseCertificateFilePEM(t *testing.T) {
	der := generateSelfSignedCSCADER(t)
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	result, err := parseCertificateFile(core.FormatPEM, block, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(result.Certificates))
	}
}

func TestParseCertificateFileRejectsEmptyPEM(t *testing.T) {
	if _, err := parseCertificateFile(core.FormatPEM, []byte("not pem"), ""); err == nil {
		t.Fatal("expected error for non-PEM content")
	}
}

func TestInferCertificateKindDefaultsToDSC(t *testing.T) {
	der := generateSelfSignedCSCADER(t)
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	cert.IsCA = false
	if got := inferCertificateKind(cert); got != core.KindDSC {
		t.Fatalf("expected DSC for non-CA cert, got %s", got)
	}
}
