package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
)

// fakeCertificateRepository implements core.CertificateRepository
// with just enough behaviour to drive the reconciler under test.
type fakeCertificateRepository struct {
	pending map[core.Kind][]*core.Certificate
	stored  map[uuid.UUID]bool
	byID    map[uuid.UUID]*core.Certificate
	countries []string
	counts  map[core.Kind]int
}

func (f *fakeCertificateRepository) FindByFingerprint(ctx context.Context, kind core.Kind, fingerprint string) (*core.Certificate, error) {
	return nil, nil
}
func (f *fakeCertificateRepository) Insert(ctx context.Context, cert *core.Certificate) error { return nil }
func (f *fakeCertificateRepository) RecordDuplicate(ctx context.Context, certID uuid.UUID, obs core.DuplicateObservation) error {
	return nil
}
func (f *fakeCertificateRepository) MarkDirectoryStored(ctx context.Context, certID uuid.UUID, stored bool) error {
	f.stored[certID] = stored
	return nil
}
func (f *fakeCertificateRepository) UpdateStatus(ctx context.Context, certID uuid.UUID, status core.ValidationStatus) error {
	return nil
}
func (f *fakeCertificateRepository) ListPendingDirectoryWrites(ctx context.Context, kind core.Kind, limit int) ([]*core.Certificate, error) {
	return f.pending[kind], nil
}
func (f *fakeCertificateRepository) CountByKind(ctx context.Context, kind core.Kind) (int, error) {
	return f.counts[kind], nil
}
func (f *fakeCertificateRepository) Search(ctx context.Context, flt core.CertificateFilter) ([]*core.Certificate, int, error) {
	return nil, 0, nil
}
func (f *fakeCertificateRepository) Countries(ctx context.Context) ([]string, error) {
	return f.countries, nil
}
func (f *fakeCertificateRepository) Get(ctx context.Context, id uuid.UUID) (*core.Certificate, error) {
	return f.byID[id], nil
}
func (f *fakeCertificateRepository) DeleteByUpload(ctx context.Context, uploadID uuid.UUID) (int, error) {
	return 0, nil
}

type fakeCRLRepository struct {
	pending []*core.CRL
	stored  map[uuid.UUID]bool
}

func (f *fakeCRLRepository) FindByIssuer(ctx context.Context, country, issuerDN string) (*core.CRL, error) {
	return nil, nil
}
func (f *fakeCRLRepository) Upsert(ctx context.Context, crl *core.CRL) error { return nil }
func (f *fakeCRLRepository) MarkDirectoryStored(ctx context.Context, crlID uuid.UUID, stored bool) error {
	f.stored[crlID] = stored
	return nil
}
func (f *fakeCRLRepository) ListPendingDirectoryWrites(ctx context.Context, limit int) ([]*core.CRL, error) {
	return f.pending, nil
}
func (f *fakeCRLRepository) CountAll(ctx context.Context) (int, error) { return len(f.pending), nil }

type fakeReconciliationRepository struct {
	runs    map[uuid.UUID]*core.ReconciliationRun
	entries []core.ReconciliationLogEntry
}

func (f *fakeReconciliationRepository) CreateRun(ctx context.Context, run *core.ReconciliationRun) error {
	f.runs[run.ID] = run
	return nil
}
func (f *fakeReconciliationRepository) AppendLogEntry(ctx context.Context, entry *core.ReconciliationLogEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}
func (f *fakeReconciliationRepository) CompleteRun(ctx context.Context, run *core.ReconciliationRun) error {
	f.runs[run.ID] = run
	return nil
}
func (f *fakeReconciliationRepository) GetRun(ctx context.Context, id uuid.UUID) (*core.ReconciliationRun, error) {
	return f.runs[id], nil
}
func (f *fakeReconciliationRepository) ListRuns(ctx context.Context, offset, limit int) ([]*core.ReconciliationRun, int, error) {
	return nil, len(f.runs), nil
}
func (f *fakeReconciliationRepository) SaveSnapshot(ctx context.Context, snap *core.SyncStatusSnapshot) error {
	return nil
}
func (f *fakeReconciliationRepository) LatestSnapshot(ctx context.Context) (*core.SyncStatusSnapshot, error) {
	return nil, nil
}

type fakeDirectoryAdapter struct {
	failUpsertFingerprint string
}

func (f *fakeDirectoryAdapter) EnsureCountry(ctx context.Context, alpha2 string) error { return nil }
func (f *fakeDirectoryAdapter) EnsureOrganisationalUnit(ctx context.Context, kind core.Kind, alpha2 string) error {
	return nil
}
func (f *fakeDirectoryAdapter) UpsertCertificate(ctx context.Context, cert *core.Certificate) error {
	if cert.Fingerprint == f.failUpsertFingerprint {
		return errFakeUpsert
	}
	return nil
}
func (f *fakeDirectoryAdapter) UpsertCRL(ctx context.Context, crl *core.CRL) error { return nil }
func (f *fakeDirectoryAdapter) LookupCertificateBySubject(ctx context.Context, subjectDN string, kind core.Kind, country string) ([]*core.Certificate, error) {
	return nil, nil
}
func (f *fakeDirectoryAdapter) LookupCRLByIssuer(ctx context.Context, issuerDN, country string) (*core.CRL, error) {
	return nil, nil
}
func (f *fakeDirectoryAdapter) LookupByFingerprint(ctx context.Context, kind core.Kind, country, fingerprint string) (*core.Certificate, error) {
	return nil, nil
}
func (f *fakeDirectoryAdapter) CountByKind(ctx context.Context, kind core.Kind, country string) (int, error) {
	return 0, nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errFakeUpsert = fakeErr("simulated directory failure")

func TestRunReconcilesPendingCertificates(t *testing.T) {
	cscaID := core.NewID()
	certs := &fakeCertificateRepository{
		pending: map[core.Kind][]*core.Certificate{
			core.KindCSCA: {{ID: cscaID, Kind: core.KindCSCA, Country: "KR", Fingerprint: "abc"}},
		},
		stored: map[uuid.UUID]bool{},
		byID:   map[uuid.UUID]*core.Certificate{},
		counts: map[core.Kind]int{},
	}
	crls := &fakeCRLRepository{stored: map[uuid.UUID]bool{}}
	runs := &fakeReconciliationRepository{runs: map[uuid.UUID]*core.ReconciliationRun{}}
	dir := &fakeDirectoryAdapter{}

	rec := New(certs, crls, runs, dir, testLogger{}).WithClock(clock.NewFake())
	run, err := rec.Run(context.Background(), core.TriggerManual, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.State != core.ReconSuccess {
		t.Fatalf("expected SUCCESS, got %s", run.State)
	}
	if run.SuccessCount != 1 || run.PerKindAdded[core.KindCSCA] != 1 {
		t.Fatalf("expected one CSCA added, got %+v", run)
	}
	if !certs.stored[cscaID] {
		t.Fatal("expected certificate to be marked directory_stored")
	}
}

func TestRunPartialOnDirectoryFailure(t *testing.T) {
	certs := &fakeCertificateRepository{
		pending: map[core.Kind][]*core.Certificate{
			core.KindCSCA: {{ID: core.NewID(), Kind: core.KindCSCA, Country: "KR", Fingerprint: "bad"}},
			core.KindDSC:  {{ID: core.NewID(), Kind: core.KindDSC, Country: "KR", Fingerprint: "good"}},
		},
		stored: map[uuid.UUID]bool{},
		byID:   map[uuid.UUID]*core.Certificate{},
		counts: map[core.Kind]int{},
	}
	crls := &fakeCRLRepository{stored: map[uuid.UUID]bool{}}
	runs := &fakeReconciliationRepository{runs: map[uuid.UUID]*core.ReconciliationRun{}}
	dir := &fakeDirectoryAdapter{failUpsertFingerprint: "bad"}

	rec := New(certs, crls, runs, dir, testLogger{}).WithClock(clock.NewFake())
	run, err := rec.Run(context.Background(), core.TriggerScheduled, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.State != core.ReconPartial {
		t.Fatalf("expected PARTIAL, got %s", run.State)
	}
	if run.FailedCount != 1 || run.SuccessCount != 1 {
		t.Fatalf("expected one success and one failure, got %+v", run)
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	certs := &fakeCertificateRepository{pending: map[core.Kind][]*core.Certificate{}, stored: map[uuid.UUID]bool{}, byID: map[uuid.UUID]*core.Certificate{}, counts: map[core.Kind]int{}}
	crls := &fakeCRLRepository{stored: map[uuid.UUID]bool{}}
	runs := &fakeReconciliationRepository{runs: map[uuid.UUID]*core.ReconciliationRun{}}
	dir := &fakeDirectoryAdapter{}

	rec := New(certs, crls, runs, dir, testLogger{}).WithClock(clock.NewFake())
	rec.mu.Lock()
	defer rec.mu.Unlock()

	_, err := rec.Run(context.Background(), core.TriggerManual, false)
	if err == nil {
		t.Fatal("expected AlreadyRunning error")
	}
}

func TestRevalidationSweepTransitionsExpiredRows(t *testing.T) {
	certID := core.NewID()
	now := time.Now()
	certs := &fakeCertificateRepository{
		pending: map[core.Kind][]*core.Certificate{},
		stored:  map[uuid.UUID]bool{},
		byID: map[uuid.UUID]*core.Certificate{
			certID: {ID: certID, NotBefore: now.Add(-48 * time.Hour), NotAfter: now.Add(-time.Hour)},
		},
		counts: map[core.Kind]int{},
	}
	crls := &fakeCRLRepository{stored: map[uuid.UUID]bool{}}
	runs := &fakeReconciliationRepository{runs: map[uuid.UUID]*core.ReconciliationRun{}}
	dir := &fakeDirectoryAdapter{}

	fake := clock.NewFake()
	fake.Set(now)
	rec := New(certs, crls, runs, dir, testLogger{}).WithClock(fake)

	validations := &fakeValidationRepository{
		results: []*core.ValidationResult{
			{ID: core.NewID(), CertificateID: certID, Status: core.StatusValid, CurrentlyExpired: false},
		},
	}
	summary, err := rec.RevalidationSweep(context.Background(), validations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.NewlyExpired != 1 {
		t.Fatalf("expected 1 newly expired row, got %+v", summary)
	}
}

type fakeValidationRepository struct {
	results []*core.ValidationResult
}

func (f *fakeValidationRepository) Insert(ctx context.Context, vr *core.ValidationResult) error { return nil }
func (f *fakeValidationRepository) LatestForCertificate(ctx context.Context, certID uuid.UUID) (*core.ValidationResult, error) {
	return nil, nil
}
func (f *fakeValidationRepository) ListWithExpiry(ctx context.Context) ([]*core.ValidationResult, error) {
	return f.results, nil
}
func (f *fakeValidationRepository) UpdateValidityPeriod(ctx context.Context, id uuid.UUID, valid, currentlyExpired bool, status core.ValidationStatus) error {
	for _, r := range f.results {
		if r.ID == id {
			r.ValidityPeriodValid = valid
			r.CurrentlyExpired = currentlyExpired
			r.Status = status
		}
	}
	return nil
}

// testLogger satisfies log.Logger for unit tests.
type testLogger struct{}

func (testLogger) Debug(string)   {}
func (testLogger) Info(string)    {}
func (testLogger) Notice(string)  {}
func (testLogger) Warning(string) {}
func (testLogger) Err(string)     {}
func (testLogger) AuditErr(error) {}
func (l testLogger) WithField(key string, value interface{}) log.Logger { return l }
