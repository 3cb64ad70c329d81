package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
	"github.com/icao-pkd/pkd/internal/reconciler"
)

type fakeCertificateRepository struct{}

func (fakeCertificateRepository) FindByFingerprint(ctx context.Context, kind core.Kind, fingerprint string) (*core.Certificate, error) {
	return nil, nil
}
func (fakeCertificateRepository) Insert(ctx context.Context, cert *core.Certificate) error { return nil }
func (fakeCertificateRepository) RecordDuplicate(ctx context.Context, certID uuid.UUID, obs core.DuplicateObservation) error {
	return nil
}
func (fakeCertificateRepository) MarkDirectoryStored(ctx context.Context, certID uuid.UUID, stored bool) error {
	return nil
}
func (fakeCertificateRepository) UpdateStatus(ctx context.Context, certID uuid.UUID, status core.ValidationStatus) error {
	return nil
}
func (fakeCertificateRepository) ListPendingDirectoryWrites(ctx context.Context, kind core.Kind, limit int) ([]*core.Certificate, error) {
	return nil, nil
}
func (fakeCertificateRepository) CountByKind(ctx context.Context, kind core.Kind) (int, error) {
	return 0, nil
}
func (fakeCertificateRepository) Search(ctx context.Context, f core.CertificateFilter) ([]*core.Certificate, int, error) {
	return nil, 0, nil
}
func (fakeCertificateRepository) Countries(ctx context.Context) ([]string, error) { return nil, nil }
func (fakeCertificateRepository) Get(ctx context.Context, id uuid.UUID) (*core.Certificate, error) {
	return nil, nil
}
func (fakeCertificateRepository) DeleteByUpload(ctx context.Context, uploadID uuid.UUID) (int, error) {
	return 0, nil
}

type fakeCRLRepository struct{}

func (fakeCRLRepository) FindByIssuer(ctx context.Context, country, issuerDN string) (*core.CRL, error) {
	return nil, nil
}
func (fakeCRLRepository) Upsert(ctx context.Context, crl *core.CRL) error { return nil }
func (fakeCRLRepository) MarkDirectoryStored(ctx context.Context, crlID uuid.UUID, stored bool) error {
	return nil
}
func (fakeCRLRepository) ListPendingDirectoryWrites(ctx context.Context, limit int) ([]*core.CRL, error) {
	return nil, nil
}
func (fakeCRLRepository) CountAll(ctx context.Context) (int, error) { return 0, nil }

type fakeReconciliationRepository struct{}

func (fakeReconciliationRepository) CreateRun(ctx context.Context, run *core.ReconciliationRun) error {
	return nil
}
func (fakeReconciliationRepository) AppendLogEntry(ctx context.Context, entry *core.ReconciliationLogEntry) error {
	return nil
}
func (fakeReconciliationRepository) CompleteRun(ctx context.Context, run *core.ReconciliationRun) error {
	return nil
}
func (fakeReconciliationRepository) GetRun(ctx context.Context, id uuid.UUID) (*core.ReconciliationRun, error) {
	return nil, nil
}
func (fakeReconciliationRepository) ListRuns(ctx context.Context, offset, limit int) ([]*core.ReconciliationRun, int, error) {
	return nil, 0, nil
}
func (fakeReconciliationRepository) SaveSnapshot(ctx context.Context, snap *core.SyncStatusSnapshot) error {
	return nil
}
func (fakeReconciliationRepository) LatestSnapshot(ctx context.Context) (*core.SyncStatusSnapshot, error) {
	return nil, nil
}

type fakeDirectoryAdapter struct{}

func (fakeDirectoryAdapter) EnsureCountry(ctx context.Context, alpha2 string) error { return nil }
func (fakeDirectoryAdapter) EnsureOrganisationalUnit(ctx context.Context, kind core.Kind, alpha2 string) error {
	return nil
}
func (fakeDirectoryAdapter) UpsertCertificate(ctx context.Context, cert *core.Certificate) error {
	return nil
}
func (fakeDirectoryAdapter) UpsertCRL(ctx context.Context, crl *core.CRL) error { return nil }
func (fakeDirectoryAdapter) LookupCertificateBySubject(ctx context.Context, subjectDN string, kind core.Kind, country string) ([]*core.Certificate, error) {
	return nil, nil
}
func (fakeDirectoryAdapter) LookupCRLByIssuer(ctx context.Context, issuerDN, country string) (*core.CRL, error) {
	return nil, nil
}
func (fakeDirectoryAdapter) LookupByFingerprint(ctx context.Context, kind core.Kind, country, fingerprint string) (*core.Certificate, error) {
	return nil, nil
}
func (fakeDirectoryAdapter) CountByKind(ctx context.Context, kind core.Kind, country string) (int, error) {
	return 0, nil
}

type fakeValidationRepository struct{}

func (fakeValidationRepository) Insert(ctx context.Context, vr *core.ValidationResult) error {
	return nil
}
func (fakeValidationRepository) LatestForCertificate(ctx context.Context, certID uuid.UUID) (*core.ValidationResult, error) {
	return nil, nil
}
func (fakeValidationRepository) ListWithExpiry(ctx context.Context) ([]*core.ValidationResult, error) {
	return nil, nil
}
func (fakeValidationRepository) UpdateValidityPeriod(ctx context.Context, id uuid.UUID, valid, currentlyExpired bool, status core.ValidationStatus) error {
	return nil
}

type fakeNotificationRepository struct {
	created []*core.CatalogNotification
	latest  *core.CatalogNotification
}

func (f *fakeNotificationRepository) Create(ctx context.Context, n *core.CatalogNotification) error {
	f.created = append(f.created, n)
	f.latest = n
	return nil
}
func (f *fakeNotificationRepository) Latest(ctx context.Context) (*core.CatalogNotification, error) {
	return f.latest, nil
}
func (f *fakeNotificationRepository) List(ctx context.Context, offset, limit int) ([]*core.CatalogNotification, int, error) {
	return f.created, len(f.created), nil
}

type fakeChecker struct {
	version string
	err     error
}

func (f fakeChecker) CurrentVersion(ctx context.Context) (string, error) { return f.version, f.err }

type testLogger struct{}

func (testLogger) Debug(string)   {}
func (testLogger) Info(string)    {}
func (testLogger) Notice(string)  {}
func (testLogger) Warning(string) {}
func (testLogger) Err(string)     {}
func (testLogger) AuditErr(error) {}
func (l testLogger) WithField(key string, value interface{}) log.Logger { return l }

func newTestReconciler() *reconciler.Reconciler {
	return reconciler.New(fakeCertificateRepository{}, fakeCRLRepository{}, fakeReconciliationRepository{}, fakeDirectoryAdapter{}, testLogger{}).WithClock(clock.NewFake())
}

func TestPollCatalogCreatesNotificationOnVersionChange(t *testing.T) {
	notifications := &fakeNotificationRepository{
		latest: &core.CatalogNotification{NewVersion: "2026-07-01"},
	}
	s := New(newTestReconciler(), fakeValidationRepository{}, notifications, fakeChecker{version: "2026-08-01"}, testLogger{}, 2, false).WithClock(clock.NewFake())

	s.pollCatalog()

	if len(notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifications.created))
	}
	n := notifications.created[0]
	if n.PreviousVersion != "2026-07-01" || n.NewVersion != "2026-08-01" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestPollCatalogSkipsWhenUnchanged(t *testing.T) {
	notifications := &fakeNotificationRepository{
		latest: &core.CatalogNotification{NewVersion: "2026-08-01"},
	}
	s := New(newTestReconciler(), fakeValidationRepository{}, notifications, fakeChecker{version: "2026-08-01"}, testLogger{}, 2, false).WithClock(clock.NewFake())

	s.pollCatalog()

	if len(notifications.created) != 0 {
		t.Fatalf("expected no new notification, got %d", len(notifications.created))
	}
}

func TestPollCatalogToleratesCheckerError(t *testing.T) {
	notifications := &fakeNotificationRepository{}
	s := New(newTestReconciler(), fakeValidationRepository{}, notifications, fakeChecker{err: context.DeadlineExceeded}, testLogger{}, 2, false).WithClock(clock.NewFake())

	s.pollCatalog()

	if len(notifications.created) != 0 {
		t.Fatalf("expected no notification on checker failure, got %d", len(notifications.created))
	}
}

func TestRunReconciliationAndRevalidationDoNotPanic(t *testing.T) {
	notifications := &fakeNotificationRepository{}
	s := New(newTestReconciler(), fakeValidationRepository{}, notifications, nil, testLogger{}, 3, true)

	s.runReconciliation()
	s.runRevalidation()
}
