package pki

import (
	"encoding/asn1"

	"github.com/icao-pkd/pkd/internal/pkderr"
)

// icaoSODTag is the application-class [23] (0x77) tag ICAO 9303 wraps
// the CMS-encoded Security Object Document in.
const icaoSODTag = 0x77

// UnwrapICAOSOD strips the outer application-class [23] TLV wrapper an
// ePassport chip emits around a SOD, if present, and returns the
// CMS-encoded bytes underneath. Bytes that do not start with the 0x77
// tag are passed through unchanged, satisfying the round-trip law
// unwrap(wrap(x)) == x and unwrap(x) == x when x[0] != 0x77.
func UnwrapICAOSOD(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, pkderr.Parse("empty SOD input")
	}
	if b[0] != icaoSODTag {
		return b, nil
	}

	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(b, &raw); err != nil {
		return nil, pkderr.Parse("failed to unwrap ICAO SOD TLV: %v", err)
	}
	return raw.Bytes, nil
}

// DataGroupHash is one entry of an LDS Security Object's
// dataGroupHashValues sequence.
type DataGroupHash struct {
	Number int
	Value  []byte
}

// LDSSecurityObject is the parsed content of the structure encapsulated
// by a SOD's CMS SignedData: { version, hashAlgorithm, dataGroupHashValues }.
type LDSSecurityObject struct {
	Version           int
	HashAlgorithmOID  asn1.ObjectIdentifier
	DataGroupHashes   map[int][]byte
}

type ldsSecurityObjectASN1 struct {
	Version         int
	HashAlgorithm   algorithmIdentifier
	DataGroupHashes []dataGroupHashASN1 `asn1:"set"`
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type dataGroupHashASN1 struct {
	Number int
	Value  []byte
}

// ParseLDSSecurityObject decodes the SEQUENCE
// { version INTEGER, hashAlgorithm AlgorithmIdentifier,
//   dataGroupHashValues SEQUENCE OF { dataGroupNumber INTEGER, dataGroupHashValue OCTET STRING } }
// out of a SOD's CMS encapsulated content, per spec.md §4.1.
func ParseLDSSecurityObject(encapsulated []byte) (*LDSSecurityObject, error) {
	var raw ldsSecurityObjectASN1
	if _, err := asn1.Unmarshal(encapsulated, &raw); err != nil {
		// The dataGroupHashValues field is a SEQUENCE OF in the ICAO
		// spec, not a SET OF; some issuers disagree on which DER tag
		// to use. Retry treating it as an ordinary sequence.
		var alt struct {
			Version         int
			HashAlgorithm   algorithmIdentifier
			DataGroupHashes []dataGroupHashASN1
		}
		if _, err2 := asn1.Unmarshal(encapsulated, &alt); err2 != nil {
			return nil, pkderr.Parse("LDS security object parse failed: %v / %v", err, err2)
		}
		raw.Version = alt.Version
		raw.HashAlgorithm = alt.HashAlgorithm
		raw.DataGroupHashes = alt.DataGroupHashes
	}

	out := &LDSSecurityObject{
		Version:          raw.Version,
		HashAlgorithmOID: raw.HashAlgorithm.Algorithm,
		DataGroupHashes:  make(map[int][]byte, len(raw.DataGroupHashes)),
	}
	for _, dg := range raw.DataGroupHashes {
		out.DataGroupHashes[dg.Number] = dg.Value
	}
	return out, nil
}

// DigestAlgorithmForOID maps the handful of OIDs ICAO LDS objects use
// to a DigestAlgorithm.
func DigestAlgorithmForOID(oid asn1.ObjectIdentifier) (DigestAlgorithm, error) {
	switch oid.String() {
	case "1.3.14.3.2.26":
		return SHA1, nil
	case "2.16.840.1.101.3.4.2.1":
		return SHA256, nil
	case "2.16.840.1.101.3.4.2.2":
		return SHA384, nil
	case "2.16.840.1.101.3.4.2.3":
		return SHA512, nil
	default:
		return "", pkderr.Unsupported("unrecognised hash algorithm OID %s", oid.String())
	}
}
