package parser

import (
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/pki"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// singleCertificateResult is the outcome of ingesting one individual
// certificate or CRL file (spec.md §4.3's "individual certificate
// files" and "CRL files" cases).
type singleCertificateResult struct {
	Certificates []*core.Certificate // PEM/DER/P7B: 1..n certs
	CRL          *core.CRL           // non-nil only for a CRL file
}

// parseCertificateFile handles PEM, DER and P7B content: PEM is
// base64-block-decoded first, DER is a single certificate, and P7B
// yields every certificate in the PKCS#7 bag. kindHint is the kind the
// caller asserts (individual-certificate uploads carry no DN to
// classify by, unlike LDIF entries); an empty hint falls back to
// inferCertificateKind.
func parseCertificateFile(format core.UploadFormat, data []byte, kindHint core.Kind) (*singleCertificateResult, error) {
	switch format {
	case core.FormatPEM:
		ders, err := decodePEMCertificates(data)
		if err != nil {
			return nil, err
		}
		return certsFromDER(ders, kindHint)
	case core.FormatDER:
		return certsFromDER([][]byte{data}, kindHint)
	case core.FormatP7B:
		cms, err := pki.ParseCMSSignedData(data)
		if err != nil {
			return nil, err
		}
		ders := make([][]byte, 0, len(cms.Certificates))
		for _, c := range cms.Certificates {
			ders = append(ders, c.Raw)
		}
		return certsFromDER(ders, kindHint)
	default:
		return nil, pkderr.Unsupported("parseCertificateFile: unsupported format %q", format)
	}
}

func certsFromDER(ders [][]byte, kindHint core.Kind) (*singleCertificateResult, error) {
	out := &singleCertificateResult{Certificates: make([]*core.Certificate, 0, len(ders))}
	for _, der := range ders {
		parsed, err := pki.ParseX509(der)
		if err != nil {
			// Partial-parse invariant (spec.md §4.3): skip, keep the rest.
			continue
		}
		kind := kindHint
		if kind == "" {
			kind = inferCertificateKind(parsed.Cert)
		}
		out.Certificates = append(out.Certificates, certificateFromParsed(parsed, kind))
	}
	if len(out.Certificates) == 0 {
		return nil, pkderr.Parse("no valid certificates found")
	}
	return out, nil
}

// inferCertificateKind is a best-effort classification for a bare
// certificate file that carries no kind hint: a self-signed cert whose
// basic constraints mark it as a CA is treated as a CSCA, everything
// else as a DSC (the two
// most common unlabelled uploads).
func inferCertificateKind(cert *x509.Certificate) core.Kind {
	if cert.IsCA && pki.VerifySelfSignature(cert) {
		return core.KindCSCA
	}
	return core.KindDSC
}

// decodePEMCertificates splits a PEM bundle into its constituent
// CERTIFICATE blocks' DER bytes, skipping any non-certificate blocks
// (e.g. stray private keys) rather than failing the whole file.
func decodePEMCertificates(data []byte) ([][]byte, error) {
	var ders [][]byte
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			ders = append(ders, block.Bytes)
		}
	}
	if len(ders) == 0 {
		return nil, pkderr.Parse("no PEM CERTIFICATE blocks found")
	}
	return ders, nil
}

// parseCRLFile handles a standalone CRL file (spec.md §4.3's "for CRL
// files: parse and register revocations").
func parseCRLFile(data []byte) (*core.CRL, error) {
	parsed, err := pki.ParseCRL(data)
	if err != nil {
		return nil, err
	}
	return crlFromParsed(parsed), nil
}

// crlFromParsed builds the domain CRL the repository layer persists.
func crlFromParsed(parsed *pki.ParsedCRL) *core.CRL {
	return &core.CRL{
		ID:             core.NewID(),
		Country:        core.ExtractCountryFromDN(parsed.IssuerDN),
		IssuerDN:       parsed.IssuerDN,
		ThisUpdate:     parsed.List.ThisUpdate,
		NextUpdate:     parsed.List.NextUpdate,
		Number:         parsed.Number,
		Fingerprint:    parsed.Fingerprint,
		DER:            parsed.DER,
		RevokedSerials: parsed.RevokedAt,
		CreatedAt:      time.Now(),
	}
}
