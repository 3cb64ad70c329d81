package parser

import (
	"strings"

	"github.com/go-ldap/ldif"

	"github.com/icao-pkd/pkd/internal/core"
)

// ldifItem is one classified attribute value pulled out of an LDIF
// bundle entry.
type ldifItem struct {
	Kind         core.Kind // "" for CRL/Master-List items, set from the DN's "o=" RDN otherwise
	Country      string
	DER          []byte
	IsCRL        bool
	IsMasterList bool
}

// splitLDIF implements spec.md §4.3's LDIF handling: split into entries
// by blank-line separator, classify each by DN pattern (o=csca | o=dsc
// | o=crl | …) and attribute name (userCertificate;binary,
// certificateRevocationList;binary, CscaMasterListData), and decode the
// attribute's (already base64-decoded, per RFC 2849) binary value.
// Grounded on github.com/go-ldap/ldif, the RFC 2849 entry splitter the
// reference pack's vault manifest depends on, layered with spec.md's
// DN/attribute classification rules.
func splitLDIF(raw []byte) ([]ldifItem, error) {
	parsed, err := ldif.Parse(string(raw))
	if err != nil {
		return nil, err
	}

	var items []ldifItem
	for _, e := range parsed.Entries {
		if e.Entry == nil {
			continue // a changetype record (add/modify/delete), not a bundle entry
		}
		entryKind := classifyDN(e.Entry.DN)
		country := core.ExtractCountryFromDN(e.Entry.DN)

		for _, name := range []string{"userCertificate;binary", "cACertificate;binary"} {
			for _, der := range e.Entry.GetRawAttributeValues(name) {
				items = append(items, ldifItem{Kind: entryKind, Country: country, DER: der})
			}
		}
		for _, der := range e.Entry.GetRawAttributeValues("certificateRevocationList;binary") {
			items = append(items, ldifItem{Country: country, DER: der, IsCRL: true})
		}
		for _, der := range e.Entry.GetRawAttributeValues("CscaMasterListData") {
			items = append(items, ldifItem{Country: country, DER: der, IsMasterList: true})
		}
	}
	return items, nil
}

// classifyDN maps an LDIF entry's DN to a certificate kind by its "o="
// RDN, per spec.md §4.3's DN-pattern classification rule. Entries
// under o=crl or o=ml carry no certificate kind of their own; their
// item type comes from the attribute name instead (see splitLDIF).
func classifyDN(dn string) core.Kind {
	lower := strings.ToLower(dn)
	switch {
	case strings.Contains(lower, "o=csca"):
		return core.KindCSCA
	case strings.Contains(lower, "o=dsc"):
		return core.KindDSC
	case strings.Contains(lower, "o=lc"):
		return core.KindLC
	default:
		return ""
	}
}
