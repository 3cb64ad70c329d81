package parser

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/icao-pkd/pkd/internal/core"
)

func wrapBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func TestSplitLDIFClassifiesByDNAndAttribute(t *testing.T) {
	cscaDER, _ := generateTestCert(t, "Test CSCA", "DE", true)
	crlDER := []byte("not-a-real-crl-but-fine-for-splitting")

	ldifText := fmt.Sprintf(`dn: cn=abcd1234,o=csca,c=DE,dc=data,dc=download,dc=pkd
objectClass: pkdDownload
userCertificate;binary:: %s

dn: cn=efgh5678,o=crl,c=DE,dc=data,dc=download,dc=pkd
objectClass: cRLDistributionPoint
certificateRevocationList;binary:: %s

`, wrapBase64(cscaDER), wrapBase64(crlDER))

	items, err := splitLDIF([]byte(ldifText))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	var sawCSCA, sawCRL bool
	for _, item := range items {
		switch {
		case item.Kind == core.KindCSCA:
			sawCSCA = true
		case item.IsCRL:
			sawCRL = true
		}
	}
	if !sawCSCA || !sawCRL {
		t.Fatalf("expected both a CSCA item and a CRL item, got %+v", items)
	}
}

func TestSplitLDIFIgnoresChangeRecords(t *testing.T) {
	ldifText := `dn: cn=abcd1234,o=csca,c=DE,dc=data,dc=download,dc=pkd
changetype: delete

`
	items, err := splitLDIF([]byte(ldifText))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items for a changetype record, got %d", len(items))
	}
}

func TestClassifyDN(t *testing.T) {
	cases := map[string]core.Kind{
		"cn=x,o=csca,c=DE": core.KindCSCA,
		"cn=x,o=dsc,c=DE":  core.KindDSC,
		"cn=x,o=lc,c=DE":   core.KindLC,
		"cn=x,o=crl,c=DE":  "",
	}
	for dn, want := range cases {
		if got := classifyDN(dn); got != want {
			t.Fatalf("%s: expected %q, got %q", dn, want, got)
		}
	}
}
