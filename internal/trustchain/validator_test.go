package trustchain

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
)

// fakeDirectory is a minimal in-memory core.DirectoryAdapter stand-in
// for unit-testing the validator without a live LDAP server.
type fakeDirectory struct {
	cscaByCountry map[string][]*core.Certificate
	crlByIssuer   map[string]*core.CRL
}

func (f *fakeDirectory) EnsureCountry(ctx context.Context, alpha2 string) error { return nil }
func (f *fakeDirectory) EnsureOrganisationalUnit(ctx context.Context, kind core.Kind, alpha2 string) error {
	return nil
}
func (f *fakeDirectory) UpsertCertificate(ctx context.Context, cert *core.Certificate) error {
	return nil
}
func (f *fakeDirectory) UpsertCRL(ctx context.Context, crl *core.CRL) error { return nil }
func (f *fakeDirectory) LookupCertificateBySubject(ctx context.Context, subjectDN string, kind core.Kind, country string) ([]*core.Certificate, error) {
	if kind != core.KindCSCA {
		return nil, nil
	}
	return f.cscaByCountry[country], nil
}
func (f *fakeDirectory) LookupCRLByIssuer(ctx context.Context, issuerDN, country string) (*core.CRL, error) {
	return f.crlByIssuer[issuerDN], nil
}
func (f *fakeDirectory) LookupByFingerprint(ctx context.Context, kind core.Kind, country, fingerprint string) (*core.Certificate, error) {
	return nil, nil
}
func (f *fakeDirectory) CountByKind(ctx context.Context, kind core.Kind, country string) (int, error) {
	return len(f.cscaByCountry[country]), nil
}

func generateCSCA(t *testing.T, cn string, notBefore, notAfter time.Time) (*core.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn, Country: []string{"KR"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return &core.Certificate{Kind: core.KindCSCA, Country: "KR", DER: der, ID: core.NewID()}, key
}

func generateDSC(t *testing.T, issuerCN string, issuerKey *ecdsa.PrivateKey, issuerCert *core.Certificate, notBefore, notAfter time.Time) *core.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	parent, err := x509.ParseCertificate(issuerCert.DER)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test DSC", Country: []string{"KR"}},
		Issuer:       pkix.Name{CommonName: issuerCN, Country: []string{"KR"}},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, issuerKey)
	if err != nil {
		t.Fatal(err)
	}
	return &core.Certificate{Kind: core.KindDSC, Country: "KR", DER: der, ID: core.NewID()}
}

func TestValidateValidChain(t *testing.T) {
	now := time.Now()
	csca, key := generateCSCA(t, "Test CSCA", now.Add(-time.Hour), now.Add(10*365*24*time.Hour))
	dsc := generateDSC(t, "Test CSCA", key, csca, now.Add(-time.Minute), now.Add(time.Hour))

	fake := clock.NewFake()
	fake.Set(now)
	dir := &fakeDirectory{cscaByCountry: map[string][]*core.Certificate{"KR": {csca}}}
	v := New(dir, noopLogger{}).WithClock(fake)

	result, err := v.Validate(context.Background(), dsc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != core.StatusValid {
		t.Fatalf("expected VALID, got %s (%s)", result.Status, result.Reason)
	}
	if !result.TrustChainValid || !result.SignatureValid {
		t.Fatalf("expected trust chain and signature to be valid: %+v", result)
	}
}

func generateCRL(t *testing.T, issuerCert *core.Certificate, issuerKey *ecdsa.PrivateKey, thisUpdate, nextUpdate time.Time) *core.CRL {
	t.Helper()
	parent, err := x509.ParseCertificate(issuerCert.DER)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: thisUpdate,
		NextUpdate: nextUpdate,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, parent, issuerKey)
	if err != nil {
		t.Fatal(err)
	}
	return &core.CRL{IssuerDN: parent.Subject.String(), ThisUpdate: thisUpdate, NextUpdate: nextUpdate, DER: der}
}

// TestValidateStaleCRLButNotCurrentlyExpiredIsValid guards against the
// fallthrough bug where a stale CRL alone forced EXPIRED_VALID on a
// certificate still inside its own validity window.
func TestValidateStaleCRLButNotCurrentlyExpiredIsValid(t *testing.T) {
	now := time.Now()
	csca, key := generateCSCA(t, "Test CSCA", now.Add(-time.Hour), now.Add(10*365*24*time.Hour))
	dsc := generateDSC(t, "Test CSCA", key, csca, now.Add(-time.Minute), now.Add(time.Hour))
	crl := generateCRL(t, csca, key, now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	fake := clock.NewFake()
	fake.Set(now)
	dir := &fakeDirectory{
		cscaByCountry: map[string][]*core.Certificate{"KR": {csca}},
		crlByIssuer:   map[string]*core.CRL{crl.IssuerDN: crl},
	}
	v := New(dir, noopLogger{}).WithClock(fake)

	result, err := v.Validate(context.Background(), dsc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != core.StatusValid {
		t.Fatalf("expected VALID for a non-expired cert with a stale CRL, got %s", result.Status)
	}
	if result.Reason != "CRL_EXPIRED" {
		t.Fatalf("expected reason CRL_EXPIRED, got %q", result.Reason)
	}
}

// TestValidateCurrentlyExpiredIsExpiredValid confirms a certificate past
// its own NotAfter still maps to EXPIRED_VALID when its chain, signature
// and revocation checks otherwise pass.
func TestValidateCurrentlyExpiredIsExpiredValid(t *testing.T) {
	now := time.Now()
	csca, key := generateCSCA(t, "Test CSCA", now.Add(-10*365*24*time.Hour), now.Add(10*365*24*time.Hour))
	dsc := generateDSC(t, "Test CSCA", key, csca, now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	fake := clock.NewFake()
	fake.Set(now)
	dir := &fakeDirectory{cscaByCountry: map[string][]*core.Certificate{"KR": {csca}}}
	v := New(dir, noopLogger{}).WithClock(fake)

	result, err := v.Validate(context.Background(), dsc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != core.StatusExpiredValid {
		t.Fatalf("expected EXPIRED_VALID, got %s (%s)", result.Status, result.Reason)
	}
}

func TestValidateCSCANotFound(t *testing.T) {
	now := time.Now()
	csca, key := generateCSCA(t, "Other CSCA", now.Add(-time.Hour), now.Add(time.Hour))
	dsc := generateDSC(t, "Unresolvable Issuer", key, csca, now.Add(-time.Minute), now.Add(time.Hour))

	fake := clock.NewFake()
	fake.Set(now)
	dir := &fakeDirectory{cscaByCountry: map[string][]*core.Certificate{}}
	v := New(dir, noopLogger{}).WithClock(fake)

	result, err := v.Validate(context.Background(), dsc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != core.StatusInvalid || result.Reason != "CSCA_NOT_FOUND" {
		t.Fatalf("expected CSCA_NOT_FOUND, got %s/%s", result.Status, result.Reason)
	}
}

// noopLogger satisfies log.Logger for unit tests that don't care about
// log output.
type noopLogger struct{}

func (noopLogger) Debug(string)   {}
func (noopLogger) Info(string)    {}
func (noopLogger) Notice(string)  {}
func (noopLogger) Warning(string) {}
func (noopLogger) Err(string)     {}
func (noopLogger) AuditErr(error) {}
func (l noopLogger) WithField(key string, value interface{}) log.Logger { return l }
