package pki

import (
	"crypto/x509"

	"github.com/digitorus/pkcs7"

	"github.com/icao-pkd/pkd/internal/pkderr"
)

// CmsSignedData is the normalised shape spec.md §4.1 names for
// parse_cms_signed_data: the encapsulated content plus the signer's
// certificate(s).
type CmsSignedData struct {
	EncapsulatedContent []byte
	Certificates        []*x509.Certificate
	SignerCertificate   *x509.Certificate
	Raw                 []byte
	parsed              *pkcs7.PKCS7
}

// ParseCMSSignedData parses a CMS/PKCS#7 SignedData structure, as used
// for ICAO Master Lists, SODs, and Deviation Lists alike. Grounded on
// github.com/digitorus/pkcs7, the CMS decoder several repos in the
// reference pack depend on.
func ParseCMSSignedData(der []byte) (*CmsSignedData, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, pkderr.Parse("cms SignedData parse failed: %v", err)
	}

	out := &CmsSignedData{
		EncapsulatedContent: p7.Content,
		Certificates:        p7.Certificates,
		Raw:                 der,
		parsed:              p7,
	}

	// The signer's own certificate is conventionally bundled in the
	// SignedData's certificate set; for both Master Lists (the MLSC)
	// and SODs (the DSC) this set contains exactly that one cert.
	if len(p7.Certificates) > 0 {
		out.SignerCertificate = p7.Certificates[len(p7.Certificates)-1]
	}

	return out, nil
}

// VerifyCMSSignature verifies the CMS signed-attributes signature
// against the already-resolved signer certificate, using
// NO_SIGNER_CERT_VERIFY | NO_ATTR_VERIFY semantics: the chain itself is
// checked separately by the Trust-Chain Validator (spec.md §4.7 step
// 5), so this only checks the cryptographic signature, not the chain.
func (c *CmsSignedData) VerifyCMSSignature(signer *x509.Certificate) error {
	c.parsed.Certificates = []*x509.Certificate{signer}
	if err := c.parsed.Verify(); err != nil {
		return pkderr.New(pkderr.SODSignatureFailed, "cms signature verification failed: %v", err)
	}
	return nil
}
