// Package directory implements the Directory Adapter (spec.md §4.5): a
// typed read/write surface over an LDAP tree at fixed DN templates,
// grounded on go-ldap/v3 the way the teacher's own rpc layer grounds
// its wire calls on grpc — a thin, well-named wrapper around a
// library the teacher's pack already depends on.
package directory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/icao-pkd/pkd/internal/core"
)

// dnTemplates fixes the DN layout of spec.md §4.5 exactly:
//
//	root              : dc=download,dc=pkd,<base>
//	compliant data    : dc=data,<root>
//	non-compliant     : dc=nc-data,<root>
//	per-country       : c={ALPHA2},dc=data,<root>
//	per-kind OU       : o={csca|mlsc|dsc|crl|ml|lc},c={ALPHA2},dc=data,<root>
//	entry             : cn={SHA256_HEX_FINGERPRINT},o={kind},c={ALPHA2},dc=data,<root>
type dnTemplates struct {
	baseDN string
}

func (t dnTemplates) root() string { return fmt.Sprintf("dc=download,dc=pkd,%s", t.baseDN) }
func (t dnTemplates) data() string { return fmt.Sprintf("dc=data,%s", t.root()) }
func (t dnTemplates) ncData() string { return fmt.Sprintf("dc=nc-data,%s", t.root()) }

func (t dnTemplates) country(alpha2 string) string {
	return fmt.Sprintf("c=%s,%s", alpha2, t.data())
}

func kindOU(kind core.Kind) string {
	switch kind {
	case core.KindDSCNC:
		// DSC_NC lives under the non-compliant subtree rather than an
		// o=dsc_nc OU under dc=data; callers route it separately (see
		// dnTemplates.organisationalUnit).
		return "dsc"
	case core.KindLC:
		return "lc"
	default:
		return strings.ToLower(string(kind))
	}
}

func (t dnTemplates) organisationalUnit(kind core.Kind, alpha2 string) string {
	if kind == core.KindDSCNC {
		return fmt.Sprintf("c=%s,%s", alpha2, t.ncData())
	}
	return fmt.Sprintf("o=%s,c=%s,%s", kindOU(kind), alpha2, t.data())
}

// certificateDN is the fixed entry DN for a certificate: keyed by its
// SHA-256 fingerprint so re-ingestion of the same bytes always targets
// the same entry (spec.md §4.5 write-idempotency invariant).
func (t dnTemplates) certificateDN(kind core.Kind, alpha2, fingerprint string) string {
	return fmt.Sprintf("cn=%s,%s", strings.ToLower(fingerprint), t.organisationalUnit(kind, alpha2))
}

// crlOU is the per-country CRL distribution-point OU, under o=crl.
func (t dnTemplates) crlOU(alpha2 string) string {
	return fmt.Sprintf("o=crl,c=%s,%s", alpha2, t.data())
}

// crlDN derives a CRL's DN from a deterministic hash of its issuer DN,
// per spec.md §4.5 ("DN derived from a deterministic hash of
// issuer_dn").
func (t dnTemplates) crlDN(alpha2, issuerDN string) string {
	sum := sha256.Sum256([]byte(issuerDN))
	return fmt.Sprintf("cn=%s,%s", hex.EncodeToString(sum[:]), t.crlOU(alpha2))
}

// masterListOU is the per-country Master List OU, under o=ml.
func (t dnTemplates) masterListOU(alpha2 string) string {
	return fmt.Sprintf("o=ml,c=%s,%s", alpha2, t.data())
}

func (t dnTemplates) masterListDN(alpha2, fingerprint string) string {
	return fmt.Sprintf("cn=%s,%s", strings.ToLower(fingerprint), t.masterListOU(alpha2))
}
