package parser

import (
	"encoding/asn1"

	"github.com/icao-pkd/pkd/internal/pki"
)

// deviationListSummary is the metadata-only result of parsing a
// Deviation List: spec.md §4.3 names no persistence for individual
// deviation entries, only their count against the Upload's counters.
type deviationListSummary struct {
	SignerFingerprint string
	EntryCount        int
}

// parseDeviationList implements spec.md §4.3's DL handling: a CMS
// SignedData wrapping a list of deviation entries, parsed for metadata
// only. The encapsulated content is a SEQUENCE OF entries; this counts
// them without decoding each entry's own deviation-code structure,
// since nothing downstream of the Upload's counters consumes that
// detail.
func parseDeviationList(der []byte) (*deviationListSummary, error) {
	cms, err := pki.ParseCMSSignedData(der)
	if err != nil {
		return nil, err
	}

	var entries []asn1.RawValue
	if _, err := asn1.Unmarshal(cms.EncapsulatedContent, &entries); err != nil {
		// Metadata-only: an undecodable inner sequence still yields a
		// summary with a zero count rather than failing the upload.
		entries = nil
	}

	fp := ""
	if cms.SignerCertificate != nil {
		fp = pki.Fingerprint(cms.SignerCertificate.Raw)
	}
	return &deviationListSummary{SignerFingerprint: fp, EntryCount: len(entries)}, nil
}
