package parser

import (
	"encoding/asn1"
	"testing"

	"github.com/digitorus/pkcs7"
)

func TestParseDeviationListCountsEntries(t *testing.T) {
	signer, signerKey := generateTestCert(t, "Test Deviation List Signer", "DE", true)
	signerCert := mustParseCert(t, signer)

	entries := []asn1.RawValue{
		{FullBytes: []byte{0x02, 0x01, 0x01}}, // INTEGER 1, stand-in deviation entry
		{FullBytes: []byte{0x02, 0x01, 0x02}},
	}
	content, err := asn1.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}

	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		t.Fatal(err)
	}
	if err := sd.AddSigner(signerCert, signerKey, pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatal(err)
	}
	der, err := sd.Finish()
	if err != nil {
		t.Fatal(err)
	}

	summary, err := parseDeviationList(der)
	if err != nil {
		t.Fatal(err)
	}
	if summary.EntryCount != 2 {
		t.Fatalf("expected 2 entries, got %d", summary.EntryCount)
	}
	if summary.SignerFingerprint == "" {
		t.Fatal("expected a non-empty signer fingerprint")
	}
}
