package parser

import (
	"testing"

	"github.com/icao-pkd/pkd/internal/core"
)

func TestSniffFormatPEM(t *testing.T) {
	data := []byte("-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n")
	if got := SniffFormat("bundle.pem", data); got != core.FormatPEM {
		t.Fatalf("expected PEM, got %s", got)
	}
}

func TestSniffFormatExtensionOverrides(t *testing.T) {
	cases := map[string]core.UploadFormat{
		"bundle.ldif": core.FormatLDIF,
		"icao.ml":     core.FormatML,
		"icao.dl":     core.FormatDL,
	}
	for name, want := range cases {
		if got := SniffFormat(name, []byte{0x30, 0x82}); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestSniffFormatBareDER(t *testing.T) {
	// A SEQUENCE that isn't a PKCS#7 ContentInfo falls back to DER.
	data := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	if got := SniffFormat("cert.der", data); got != core.FormatDER {
		t.Fatalf("expected DER, got %s", got)
	}
}

func TestSniffFormatEmpty(t *testing.T) {
	if got := SniffFormat("empty", nil); got != core.FormatDER {
		t.Fatalf("expected DER for empty input, got %s", got)
	}
}

func TestSniffFormatNonTLVFallsBackToLDIF(t *testing.T) {
	data := []byte("dn: c=US,dc=data,dc=download,dc=pkd\nobjectClass: top\n")
	if got := SniffFormat("bundle", data); got != core.FormatLDIF {
		t.Fatalf("expected LDIF, got %s", got)
	}
}
