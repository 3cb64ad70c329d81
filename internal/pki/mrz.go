package pki

import (
	"strings"

	"github.com/icao-pkd/pkd/internal/pkderr"
)

// MRZFormat names the three machine-readable-zone layouts ICAO 9303
// defines, distinguished purely by total character length.
type MRZFormat string

const (
	TD1 MRZFormat = "TD1" // 90 chars, 3 lines of 30
	TD2 MRZFormat = "TD2" // 72 chars, 2 lines of 36
	TD3 MRZFormat = "TD3" // 88 chars, 2 lines of 44
)

// MRZ is the structured result of parsing a DG1.
type MRZ struct {
	Format         MRZFormat
	DocumentType   string
	IssuingState   string
	DocumentNumber string
	Nationality    string
	DateOfBirth    string // YYMMDD
	Sex            string
	DateOfExpiry   string // YYMMDD
	Surname        string
	GivenNames     string
	Raw            string
}

// ParseDG1 extracts the MRZ from a DG1 data group. The layout is
// selected purely by the decoded text length (90/72/88), per spec.md
// §8's boundary law; any other length is a ParseError.
func ParseDG1(dg1 []byte) (*MRZ, error) {
	text := extractMRZText(dg1)

	switch len(text) {
	case 90:
		return parseTD1(text), nil
	case 72:
		return parseTD2(text), nil
	case 88:
		return parseTD3(text), nil
	default:
		return nil, pkderr.Parse("MRZ length %d does not match TD1(90)/TD2(72)/TD3(88)", len(text))
	}
}

// ParseMRZText parses a raw machine-readable-zone string (no DG1 BER-TLV
// wrapper), selecting TD1/TD2/TD3 purely by length as ParseDG1 does.
func ParseMRZText(text string) (*MRZ, error) {
	switch len(text) {
	case 90:
		return parseTD1(text), nil
	case 72:
		return parseTD2(text), nil
	case 88:
		return parseTD3(text), nil
	default:
		return nil, pkderr.Parse("MRZ length %d does not match TD1(90)/TD2(72)/TD3(88)", len(text))
	}
}

// extractMRZText strips the DG1 tag/length wrapper (tag 0x61 containing
// tag 0x5F1F) if present, returning the raw MRZ character data;
// pass-through if the input already looks like ASCII MRZ text.
func extractMRZText(dg1 []byte) string {
	for i := 0; i+1 < len(dg1); i++ {
		if dg1[i] == 0x5F && dg1[i+1] == 0x1F {
			lenIdx := i + 2
			length, valueIdx, ok := decodeBERLength(dg1, lenIdx)
			if ok && valueIdx+length <= len(dg1) {
				return string(dg1[valueIdx : valueIdx+length])
			}
		}
	}
	return strings.TrimRight(string(dg1), "\x00")
}

func decodeBERLength(buf []byte, idx int) (length, valueIdx int, ok bool) {
	if idx >= len(buf) {
		return 0, 0, false
	}
	b := buf[idx]
	if b&0x80 == 0 {
		return int(b), idx + 1, true
	}
	numBytes := int(b & 0x7F)
	if idx+1+numBytes > len(buf) {
		return 0, 0, false
	}
	l := 0
	for i := 0; i < numBytes; i++ {
		l = l<<8 | int(buf[idx+1+i])
	}
	return l, idx + 1 + numBytes, true
}

func parseTD1(t string) *MRZ {
	line1, line2 := t[0:30], t[30:60]
	return &MRZ{
		Format:         TD1,
		DocumentType:   trimFillers(line1[0:2]),
		IssuingState:   trimFillers(line1[2:5]),
		DocumentNumber: trimFillers(line1[5:14]),
		DateOfBirth:    line2[0:6],
		Sex:            trimFillers(line2[7:8]),
		DateOfExpiry:   line2[8:14],
		Nationality:    trimFillers(line2[15:18]),
		Raw:            t,
	}
}

func parseTD2(t string) *MRZ {
	line1, line2 := t[0:36], t[36:72]
	names := splitNameField(line1[5:36])
	return &MRZ{
		Format:         TD2,
		DocumentType:   trimFillers(line1[0:2]),
		IssuingState:   trimFillers(line1[2:5]),
		Surname:        names[0],
		GivenNames:     names[1],
		DocumentNumber: trimFillers(line2[0:9]),
		Nationality:    trimFillers(line2[10:13]),
		DateOfBirth:    line2[13:19],
		Sex:            trimFillers(line2[20:21]),
		DateOfExpiry:   line2[21:27],
		Raw:            t,
	}
}

func parseTD3(t string) *MRZ {
	line1, line2 := t[0:44], t[44:88]
	names := splitNameField(line1[5:44])
	return &MRZ{
		Format:         TD3,
		DocumentType:   trimFillers(line1[0:2]),
		IssuingState:   trimFillers(line1[2:5]),
		Surname:        names[0],
		GivenNames:     names[1],
		DocumentNumber: trimFillers(line2[0:9]),
		Nationality:    trimFillers(line2[10:13]),
		DateOfBirth:    line2[13:19],
		Sex:            trimFillers(line2[20:21]),
		DateOfExpiry:   line2[21:27],
		Raw:            t,
	}
}

func trimFillers(s string) string {
	return strings.Trim(s, "<")
}

// splitNameField splits a primary<<secondary name field on the double
// filler into [surname, givenNames].
func splitNameField(field string) [2]string {
	parts := strings.SplitN(field, "<<", 2)
	surname := strings.ReplaceAll(trimFillers(parts[0]), "<", " ")
	given := ""
	if len(parts) == 2 {
		given = strings.ReplaceAll(trimFillers(parts[1]), "<", " ")
	}
	return [2]string{strings.TrimSpace(surname), strings.TrimSpace(given)}
}

// ImageFormat enumerates the face-image encodings DG2 may carry.
type ImageFormat string

const (
	ImageJP2  ImageFormat = "JP2"
	ImageJPEG ImageFormat = "JPEG"
	ImageWSQ  ImageFormat = "WSQ"
)

// DG2Image is the result of parsing a DG2 biometric data group.
type DG2Image struct {
	ImageBytes []byte
	Format     ImageFormat
}

var (
	jp2Magic  = []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// ParseDG2 extracts the raw biometric image bytes from a DG2 data
// group and reports its format. DG2 is a nested BER-TLV structure
// (tag 0x75 -> 0x7F61 -> 0x7F60 -> 0x5F2E/0x7F2E carries the image);
// this walks the buffer for the innermost image tag rather than fully
// modelling the biometric data block, since only the raw image bytes
// and their format matter downstream. JP2 is returned as-is: without a
// JPEG-2000 codec in the dependency set (none of the examples carry
// one), re-encoding to JPEG is left to a caller that has one
// available.
func ParseDG2(dg2 []byte) (*DG2Image, error) {
	idx := findTLVTag(dg2, 0x5F2E)
	if idx < 0 {
		idx = findTLVTag(dg2, 0x7F2E)
	}
	body := dg2
	if idx >= 0 {
		body = dg2[idx:]
		if tagLen, lenIdx, ok := decodeBERLength(body, tagByteLen(body)); ok {
			body = body[lenIdx : lenIdx+tagLen]
		}
	}

	switch {
	case hasPrefix(body, jp2Magic):
		return &DG2Image{ImageBytes: body, Format: ImageJP2}, nil
	case hasPrefix(body, jpegMagic):
		return &DG2Image{ImageBytes: body, Format: ImageJPEG}, nil
	default:
		return &DG2Image{ImageBytes: body, Format: ImageWSQ}, nil
	}
}

func tagByteLen(buf []byte) int {
	if len(buf) > 0 && buf[0]&0x1F == 0x1F {
		return 2
	}
	return 1
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// findTLVTag returns the index just after a two-byte tag value tag
// within buf, or -1 if not found. Used for shallow BER-TLV scanning of
// DG2's nested structure.
func findTLVTag(buf []byte, tag uint16) int {
	hi, lo := byte(tag>>8), byte(tag)
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == hi && buf[i+1] == lo {
			return i + 2
		}
	}
	return -1
}
