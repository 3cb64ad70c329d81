package directory

import (
	"testing"

	"github.com/icao-pkd/pkd/internal/core"
)

func TestDNTemplates(t *testing.T) {
	dn := dnTemplates{baseDN: "dc=pkdtest,dc=example,dc=org"}

	if got, want := dn.root(), "dc=download,dc=pkd,dc=pkdtest,dc=example,dc=org"; got != want {
		t.Fatalf("root: got %q, want %q", got, want)
	}
	if got, want := dn.country("KR"), "c=KR,dc=data,"+dn.root(); got != want {
		t.Fatalf("country: got %q, want %q", got, want)
	}
	if got, want := dn.organisationalUnit(core.KindCSCA, "KR"), "o=csca,c=KR,dc=data,"+dn.root(); got != want {
		t.Fatalf("OU: got %q, want %q", got, want)
	}

	fp := "AABBCCDDEEFF"
	entryDN := dn.certificateDN(core.KindDSC, "KR", fp)
	want := "cn=aabbccddeeff,o=dsc,c=KR,dc=data," + dn.root()
	if entryDN != want {
		t.Fatalf("entry DN: got %q, want %q", entryDN, want)
	}
}

func TestCRLDNIsDeterministic(t *testing.T) {
	dn := dnTemplates{baseDN: "dc=pkdtest"}
	a := dn.crlDN("KR", "CN=Test CSCA,O=MOFA,C=KR")
	b := dn.crlDN("KR", "CN=Test CSCA,O=MOFA,C=KR")
	if a != b {
		t.Fatalf("expected deterministic CRL DN, got %q and %q", a, b)
	}
	other := dn.crlDN("KR", "CN=Other CSCA,O=MOFA,C=KR")
	if a == other {
		t.Fatal("expected different issuer DNs to hash to different CRL DNs")
	}
}
