package repository

import (
	"testing"
	"time"

	"github.com/icao-pkd/pkd/internal/core"
)

func TestCertificateModelRoundTrip(t *testing.T) {
	cert := &core.Certificate{
		ID: core.NewID(), Kind: core.KindDSC, Country: "KR",
		SubjectDN: "CN=Test DSC,O=MOFA,C=KR", Fingerprint: "deadbeef",
		NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(time.Hour),
		Duplicates: []core.DuplicateObservation{{SourceType: "LDIF", ObservedAt: time.Now()}},
	}
	m := certificateToModel(cert)
	got := m.toDomain()

	if got.ID != cert.ID || got.Fingerprint != cert.Fingerprint || got.Kind != cert.Kind {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, cert)
	}
	if len(got.Duplicates) != 1 || got.Duplicates[0].SourceType != "LDIF" {
		t.Fatalf("duplicates not preserved: %+v", got.Duplicates)
	}
}

func TestCatalogNotificationModelRoundTrip(t *testing.T) {
	n := &core.CatalogNotification{
		ID: core.NewID(), ObservedAt: time.Now(),
		PreviousVersion: "2026-07-01", NewVersion: "2026-08-01",
	}
	m := catalogNotificationToModel(n)
	got := m.toDomain()

	if got.ID != n.ID || got.PreviousVersion != n.PreviousVersion || got.NewVersion != n.NewVersion {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, n)
	}
}

func TestUUIDHelpers(t *testing.T) {
	id := core.NewID()
	if uuidOrZero(id) != id.String() {
		t.Fatal("uuidOrZero should return the string form of a non-zero uuid")
	}
	if parseUUID(id.String()) != id {
		t.Fatal("parseUUID should invert uuid.String()")
	}
	if parseUUID("") != (core.Certificate{}.ID) {
		t.Fatal("parseUUID of an empty string should be the zero uuid")
	}
	if uuidOrZero(core.Certificate{}.ID) != "" {
		t.Fatal("uuidOrZero of the zero uuid should be empty")
	}
}
