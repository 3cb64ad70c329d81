// Package parser implements spec.md §4.3's Parser Pipeline and Upload
// state machine: format detection, per-container classification, and
// the PENDING -> PROCESSING -> {COMPLETED,FAILED} orchestration that
// drives certificate/CRL/Master-List ingestion. There is no teacher
// precedent for any of these container formats (Boulder never parses
// LDIF, CMS Master Lists or ICAO deviation lists); the parsing
// primitives it leans on come from internal/pki, and the container
// splitting follows spec.md §4.3's literal byte-sniffing rules.
package parser

import (
	"bytes"
	"encoding/asn1"
	"strings"

	"github.com/icao-pkd/pkd/internal/core"
)

var (
	pemMarker = []byte("-----BEGIN")
	// pkcs7SignedDataOID is 1.2.840.113549.1.7.2, the OID spec.md §4.3
	// names for sniffing a DER blob as PKCS#7/P7B rather than a bare
	// certificate.
	pkcs7SignedDataOID = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
)

// SniffFormat classifies a single uploaded artefact. A .ldif, .ml or
// .dl filename extension decides the format outright; otherwise the
// leading bytes are sniffed, and the extension is consulted again only
// where the content alone is ambiguous (a bare DER blob looks identical
// for a certificate or a CRL until parsed).
func SniffFormat(filename string, data []byte) core.UploadFormat {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".ldif"):
		return core.FormatLDIF
	case strings.HasSuffix(lower, ".ml"):
		return core.FormatML
	case strings.HasSuffix(lower, ".dl"):
		return core.FormatDL
	}

	if len(data) == 0 {
		return core.FormatDER
	}
	if bytes.HasPrefix(bytes.TrimLeft(data, "\r\n\t "), pemMarker) {
		return core.FormatPEM
	}
	if data[0] != 0x30 {
		return core.FormatLDIF // anything not a TLV and not PEM is treated as textual LDIF
	}
	if isPKCS7(data) {
		return core.FormatP7B
	}
	if strings.HasSuffix(lower, ".crl") {
		return core.FormatCRL
	}
	return core.FormatDER
}

// isPKCS7 reports whether a DER blob's outer ContentInfo carries the
// PKCS#7 SignedData OID, per spec.md §4.3's P7B sniffing rule.
func isPKCS7(data []byte) bool {
	var contentInfo struct {
		ContentType asn1.ObjectIdentifier
		Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
	}
	if _, err := asn1.Unmarshal(data, &contentInfo); err != nil {
		return false
	}
	return contentInfo.ContentType.Equal(pkcs7SignedDataOID)
}
