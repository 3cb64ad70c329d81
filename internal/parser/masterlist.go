package parser

import (
	"encoding/asn1"
	"time"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/pki"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// cscaMasterListContent is ICAO Doc 9303 Part 12's CscaMasterList: the
// CMS SignedData's encapsulated content, a version tag followed by the
// SET OF Certificate that carries every CSCA the issuing country trusts.
type cscaMasterListContent struct {
	Version  int
	CertList []asn1.RawValue `asn1:"set"`
}

// masterListResult is the fully-parsed outcome of one ICAO Master List
// upload: the outer signer (the MLSC, stored as a Kind=MLSC
// Certificate) and every inner CSCA it vouches for.
type masterListResult struct {
	Record *core.MasterList
	MLSC   *core.Certificate
	CSCAs  []*core.Certificate
}

// parseMasterList implements spec.md §4.3's Master List handling: the
// outer CMS SignedData is parsed with pki.ParseCMSSignedData, its
// signer certificate is handled as the MLSC, and its encapsulated
// content is decoded as a cscaMasterListContent (a version followed by
// a SET OF Certificate) whose entries are each handled as a CSCA (spec.md §4.3, "a Master List's inner
// certificates are classified as CSCA; its outer signer is the MLSC").
func parseMasterList(der []byte) (*masterListResult, error) {
	cms, err := pki.ParseCMSSignedData(der)
	if err != nil {
		return nil, err
	}
	if cms.SignerCertificate == nil {
		return nil, pkderr.Parse("master list has no signer certificate")
	}

	mlsc, err := pki.ParseX509(cms.SignerCertificate.Raw)
	if err != nil {
		return nil, pkderr.Parse("master list signer certificate: %v", err)
	}

	var content cscaMasterListContent
	if _, err := asn1.Unmarshal(cms.EncapsulatedContent, &content); err != nil {
		return nil, pkderr.Parse("master list content decode failed: %v", err)
	}

	cscas := make([]*core.Certificate, 0, len(content.CertList))
	for _, raw := range content.CertList {
		parsed, err := pki.ParseX509(raw.FullBytes)
		if err != nil {
			// One malformed CSCA entry does not abort the rest of the
			// Master List; spec.md §4.3's partial-parse invariant.
			continue
		}
		cscas = append(cscas, certificateFromParsed(parsed, core.KindCSCA))
	}

	signerCountry := core.ExtractCountryFromDN(mlsc.Cert.Subject.String())
	record := &core.MasterList{
		ID:               core.NewID(),
		SignerCountry:    signerCountry,
		Version:          content.Version,
		Fingerprint:      pki.Fingerprint(der),
		MLSCFingerprint:  mlsc.Fingerprint,
		CertificateCount: len(cscas),
		CMS:              der,
		CreatedAt:        time.Now(),
	}

	return &masterListResult{
		Record: record,
		MLSC:   certificateFromParsed(mlsc, core.KindMLSC),
		CSCAs:  cscas,
	}, nil
}

// certificateFromParsed builds the domain Certificate the repository
// layer persists, country-tagging it from its own subject DN.
func certificateFromParsed(parsed *pki.ParsedCertificate, kind core.Kind) *core.Certificate {
	return &core.Certificate{
		ID:            core.NewID(),
		Kind:          kind,
		Country:       core.ExtractCountryFromDN(parsed.Cert.Subject.String()),
		SubjectDN:     parsed.SubjectDN,
		IssuerDN:      parsed.IssuerDN,
		SerialHex:     parsed.SerialHex,
		Fingerprint:   parsed.Fingerprint,
		NotBefore:     parsed.Cert.NotBefore,
		NotAfter:      parsed.Cert.NotAfter,
		PublicKeyAlgo: parsed.PublicKeyAlgo,
		PublicKeyBits: parsed.PublicKeyBits,
		SignatureAlgo: parsed.SignatureAlgo,
		DER:           parsed.DER,
		Status:        core.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}
