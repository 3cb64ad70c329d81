package pki

import (
	"crypto/x509"
	"encoding/hex"
	"time"

	"github.com/icao-pkd/pkd/internal/pkderr"
)

// ParsedCRL is the normalised result of ParseCRL.
type ParsedCRL struct {
	List        *x509.RevocationList
	DER         []byte
	Fingerprint string
	IssuerDN    string
	Number      string
	Revoked     map[string]struct{}
	RevokedAt   map[string]time.Time // serial hex -> revocation date
}

// ParseCRL parses a DER-encoded X.509 CRL using the stdlib
// x509.RevocationList API (Go 1.19+), matching the teacher's own
// go 1.20 toolchain floor.
func ParseCRL(der []byte) (*ParsedCRL, error) {
	list, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, pkderr.Parse("crl parse failed: %v", err)
	}

	revoked := make(map[string]struct{}, len(list.RevokedCertificateEntries))
	revokedAt := make(map[string]time.Time, len(list.RevokedCertificateEntries))
	for _, entry := range list.RevokedCertificateEntries {
		serial := serialToHex(entry.SerialNumber)
		revoked[serial] = struct{}{}
		revokedAt[serial] = entry.RevocationTime
	}

	number := ""
	if list.Number != nil {
		number = list.Number.String()
	}

	return &ParsedCRL{
		List:        list,
		DER:         der,
		Fingerprint: Fingerprint(der),
		IssuerDN:    list.Issuer.String(),
		Number:      number,
		Revoked:     revoked,
		RevokedAt:   revokedAt,
	}, nil
}

// IsRevoked reports whether serialHex appears in the CRL's revocation
// set.
func (p *ParsedCRL) IsRevoked(serialHex string) bool {
	_, ok := p.Revoked[serialHex]
	return ok
}

// serialHexFromBytes is a convenience for callers that only have
// raw serial bytes (e.g. out of an LDS security object) rather than a
// *big.Int.
func serialHexFromBytes(b []byte) string {
	return hex.EncodeToString(b)
}
