// Package pki implements spec.md §4.1's PKI Primitives: pure functions
// over byte buffers, grounded on the teacher's own crypto/x509 usage in
// ca/certificate-authority.go and csr/, extended with the pack's
// zcrypto and certificate-transparency-go parsers for lenient ASN.1
// introspection of non-conformant CSCA certificates.
package pki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"math/big"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	zx509 "github.com/zmap/zcrypto/x509"

	"github.com/icao-pkd/pkd/internal/pkderr"
)

// DigestAlgorithm enumerates the hash algorithms the pipeline computes
// over certificate and data-group bytes.
type DigestAlgorithm string

const (
	SHA1   DigestAlgorithm = "SHA-1"
	SHA256 DigestAlgorithm = "SHA-256"
	SHA384 DigestAlgorithm = "SHA-384"
	SHA512 DigestAlgorithm = "SHA-512"
)

// ComputeDigest hashes bytes with the named algorithm.
func ComputeDigest(algo DigestAlgorithm, data []byte) ([]byte, error) {
	switch algo {
	case SHA1:
		sum := sha1.Sum(data)
		return sum[:], nil
	case SHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case SHA384:
		sum := sha512.Sum384(data)
		return sum[:], nil
	case SHA512:
		sum := sha512.Sum512(data)
		return sum[:], nil
	default:
		return nil, pkderr.Unsupported("unsupported digest algorithm %q", algo)
	}
}

// Fingerprint returns the lowercase 64-hex-char SHA-256 fingerprint of
// der, the unique key spec.md uses for (kind, fingerprint) identity.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// ParsedCertificate is the normalised result of ParseX509: the stdlib
// *x509.Certificate plus metadata zcrypto/ctx509 help fill in when the
// stdlib parse is rejected or under-detailed.
type ParsedCertificate struct {
	Cert          *x509.Certificate
	DER           []byte
	Fingerprint   string
	SubjectDN     string
	IssuerDN      string
	SerialHex     string
	PublicKeyAlgo string
	PublicKeyBits int
	SignatureAlgo string
}

// ParseX509 parses a DER-encoded certificate. If the stdlib parser
// rejects the bytes (common for CSCA certs in ICAO Master Lists with
// minor ASN.1 non-conformities), it falls back to
// certificate-transparency-go's lenient parser so that one malformed
// entry does not prevent the rest of a Master List from being
// ingested, per spec.md §4.3's partial-parse invariant.
func ParseX509(der []byte) (*ParsedCertificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		lenient, lerr := ctx509.ParseCertificate(der)
		if lerr != nil {
			return nil, pkderr.Parse("x509 parse failed (strict: %v, lenient: %v)", err, lerr)
		}
		cert = lenientToStdlib(lenient)
	}

	pc := &ParsedCertificate{
		Cert:        cert,
		DER:         der,
		Fingerprint: Fingerprint(der),
		SubjectDN:   cert.Subject.String(),
		IssuerDN:    cert.Issuer.String(),
		SerialHex:   serialToHex(cert.SerialNumber),
	}
	introspect(pc, der)
	return pc, nil
}

// lenientToStdlib re-derives the handful of fields the validator needs
// from a certificate-transparency-go parse result, by re-marshalling
// its raw TBS bytes is unnecessary here: ctx509.Certificate embeds the
// same field shapes as crypto/x509.Certificate for our purposes, so we
// construct a minimal stdlib shim carrying Raw, Subject/Issuer and
// validity so downstream signature verification still has Raw bytes to
// work with.
func lenientToStdlib(c *ctx509.Certificate) *x509.Certificate {
	return &x509.Certificate{
		Raw:                c.Raw,
		RawTBSCertificate:  c.RawTBSCertificate,
		Subject:            c.Subject,
		Issuer:             c.Issuer,
		NotBefore:          c.NotBefore,
		NotAfter:           c.NotAfter,
		SerialNumber:       c.SerialNumber,
		PublicKey:          c.PublicKey,
		KeyUsage:           x509.KeyUsage(c.KeyUsage),
		SignatureAlgorithm: x509.SignatureAlgorithm(c.SignatureAlgorithm),
		Signature:          c.Signature,
		IsCA:               c.IsCA,
	}
}

// introspect uses zcrypto's richer x509 parser to fill in public-key
// and signature-algorithm metadata for display/storage purposes. A
// failure here is non-fatal: it only means the optional metadata
// fields are left blank.
func introspect(pc *ParsedCertificate, der []byte) {
	pc.SignatureAlgo = pc.Cert.SignatureAlgorithm.String()
	switch pub := pc.Cert.PublicKey.(type) {
	case *rsa.PublicKey:
		pc.PublicKeyAlgo = "RSA"
		pc.PublicKeyBits = pub.N.BitLen()
	case *ecdsa.PublicKey:
		pc.PublicKeyAlgo = "ECDSA"
		pc.PublicKeyBits = pub.Curve.Params().BitSize
	}

	zc, err := zx509.ParseCertificate(der)
	if err != nil {
		return
	}
	if pc.PublicKeyAlgo == "" {
		pc.PublicKeyAlgo = zc.PublicKeyAlgorithm.String()
	}
	if pc.SignatureAlgo == "" {
		pc.SignatureAlgo = zc.SignatureAlgorithm.String()
	}
}

func serialToHex(s *big.Int) string {
	if s == nil {
		return ""
	}
	b := s.Bytes()
	return hex.EncodeToString(b)
}

// VerifyX509Signature reports whether child was signed by issuer's
// private key, i.e. issuer's public key validates child's signature.
// This is the convenience wrapper spec.md §4.1 names
// verify_x509_signature.
func VerifyX509Signature(child, issuer *x509.Certificate) bool {
	return child.CheckSignatureFrom(issuer) == nil
}

// VerifySelfSignature reports whether cert is validly self-signed,
// used for CSCA path termination (spec.md §4.4 step 3).
func VerifySelfSignature(cert *x509.Certificate) bool {
	return cert.CheckSignatureFrom(cert) == nil
}

// VerifySignature verifies a raw signature over signedData using
// publicKey and the named algorithm, independent of any certificate
// structure. Used for CMS signed-attribute verification in the PA
// Verifier (spec.md §4.7 step 5).
func VerifySignature(signedData, signature []byte, publicKey crypto.PublicKey, algo x509.SignatureAlgorithm) error {
	holder := &x509.Certificate{PublicKey: publicKey}
	if err := holder.CheckSignature(algo, signedData, signature); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
