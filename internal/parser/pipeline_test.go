package parser

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
	"github.com/icao-pkd/pkd/internal/trustchain"
)

type pipelineFakeUploads struct {
	bySha      map[string]*core.Upload
	byID       map[uuid.UUID]*core.Upload
	completed  map[core.ValidationStatus]int
	failedWith string
}

func newPipelineFakeUploads() *pipelineFakeUploads {
	return &pipelineFakeUploads{bySha: map[string]*core.Upload{}, byID: map[uuid.UUID]*core.Upload{}}
}

func (f *pipelineFakeUploads) Create(ctx context.Context, u *core.Upload) error {
	f.bySha[u.SHA256] = u
	f.byID[u.ID] = u
	return nil
}
func (f *pipelineFakeUploads) FindBySHA256(ctx context.Context, sha string) (*core.Upload, error) {
	return f.bySha[sha], nil
}
func (f *pipelineFakeUploads) TransitionToProcessing(ctx context.Context, id uuid.UUID) error {
	f.byID[id].State = core.UploadProcessing
	return nil
}
func (f *pipelineFakeUploads) UpdateProgress(ctx context.Context, id uuid.UUID, processed int, perKind, perKindDup map[core.Kind]int) error {
	f.byID[id].ProcessedEntries = processed
	return nil
}
func (f *pipelineFakeUploads) Complete(ctx context.Context, id uuid.UUID, total, processed int, perKind, perKindDup map[core.Kind]int, outcome map[core.ValidationStatus]int) error {
	u := f.byID[id]
	u.State = core.UploadCompleted
	u.TotalEntries = total
	u.ProcessedEntries = processed
	u.PerKindCounts = perKind
	u.PerKindDuplicates = perKindDup
	f.completed = outcome
	return nil
}
func (f *pipelineFakeUploads) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.byID[id].State = core.UploadFailed
	f.failedWith = errMsg
	return nil
}
func (f *pipelineFakeUploads) Get(ctx context.Context, id uuid.UUID) (*core.Upload, error) {
	return f.byID[id], nil
}
func (f *pipelineFakeUploads) List(ctx context.Context, offset, limit int) ([]*core.Upload, int, error) {
	return nil, 0, nil
}
func (f *pipelineFakeUploads) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type pipelineFakeCerts struct {
	byFingerprint map[string]*core.Certificate
	inserted      []*core.Certificate
	statuses      map[uuid.UUID]core.ValidationStatus
}

func newPipelineFakeCerts() *pipelineFakeCerts {
	return &pipelineFakeCerts{byFingerprint: map[string]*core.Certificate{}, statuses: map[uuid.UUID]core.ValidationStatus{}}
}

func (f *pipelineFakeCerts) FindByFingerprint(ctx context.Context, kind core.Kind, fingerprint string) (*core.Certificate, error) {
	return f.byFingerprint[string(kind)+fingerprint], nil
}
func (f *pipelineFakeCerts) Insert(ctx context.Context, cert *core.Certificate) error {
	f.byFingerprint[string(cert.Kind)+cert.Fingerprint] = cert
	f.inserted = append(f.inserted, cert)
	return nil
}
func (f *pipelineFakeCerts) RecordDuplicate(ctx context.Context, certID uuid.UUID, obs core.DuplicateObservation) error {
	return nil
}
func (f *pipelineFakeCerts) MarkDirectoryStored(ctx context.Context, certID uuid.UUID, stored bool) error {
	return nil
}
func (f *pipelineFakeCerts) UpdateStatus(ctx context.Context, certID uuid.UUID, status core.ValidationStatus) error {
	f.statuses[certID] = status
	return nil
}
func (f *pipelineFakeCerts) ListPendingDirectoryWrites(ctx context.Context, kind core.Kind, limit int) ([]*core.Certificate, error) {
	return nil, nil
}
func (f *pipelineFakeCerts) CountByKind(ctx context.Context, kind core.Kind) (int, error) {
	return 0, nil
}
func (f *pipelineFakeCerts) Search(ctx context.Context, filter core.CertificateFilter) ([]*core.Certificate, int, error) {
	return nil, 0, nil
}
func (f *pipelineFakeCerts) Countries(ctx context.Context) ([]string, error) { return nil, nil }
func (f *pipelineFakeCerts) Get(ctx context.Context, id uuid.UUID) (*core.Certificate, error) {
	return nil, nil
}
func (f *pipelineFakeCerts) DeleteByUpload(ctx context.Context, uploadID uuid.UUID) (int, error) {
	return 0, nil
}

type pipelineFakeCRLs struct{ upserted []*core.CRL }

func (f *pipelineFakeCRLs) FindByIssuer(ctx context.Context, country, issuerDN string) (*core.CRL, error) {
	return nil, nil
}
func (f *pipelineFakeCRLs) Upsert(ctx context.Context, crl *core.CRL) error {
	f.upserted = append(f.upserted, crl)
	return nil
}
func (f *pipelineFakeCRLs) MarkDirectoryStored(ctx context.Context, crlID uuid.UUID, stored bool) error {
	return nil
}
func (f *pipelineFakeCRLs) ListPendingDirectoryWrites(ctx context.Context, limit int) ([]*core.CRL, error) {
	return nil, nil
}
func (f *pipelineFakeCRLs) CountAll(ctx context.Context) (int, error) { return 0, nil }

type pipelineFakeMasterLists struct{ inserted []*core.MasterList }

func (f *pipelineFakeMasterLists) FindByFingerprint(ctx context.Context, fingerprint string) (*core.MasterList, error) {
	return nil, nil
}
func (f *pipelineFakeMasterLists) Insert(ctx context.Context, ml *core.MasterList) error {
	f.inserted = append(f.inserted, ml)
	return nil
}
func (f *pipelineFakeMasterLists) MarkDirectoryStored(ctx context.Context, id uuid.UUID, stored bool) error {
	return nil
}

type pipelineFakeValidations struct{ inserted []*core.ValidationResult }

func (f *pipelineFakeValidations) Insert(ctx context.Context, vr *core.ValidationResult) error {
	f.inserted = append(f.inserted, vr)
	return nil
}
func (f *pipelineFakeValidations) LatestForCertificate(ctx context.Context, certID uuid.UUID) (*core.ValidationResult, error) {
	return nil, nil
}
func (f *pipelineFakeValidations) ListWithExpiry(ctx context.Context) ([]*core.ValidationResult, error) {
	return nil, nil
}
func (f *pipelineFakeValidations) UpdateValidityPeriod(ctx context.Context, id uuid.UUID, valid, currentlyExpired bool, status core.ValidationStatus) error {
	return nil
}

type pipelineFakeDirectory struct{}

func (pipelineFakeDirectory) EnsureCountry(ctx context.Context, alpha2 string) error { return nil }
func (pipelineFakeDirectory) EnsureOrganisationalUnit(ctx context.Context, kind core.Kind, alpha2 string) error {
	return nil
}
func (pipelineFakeDirectory) UpsertCertificate(ctx context.Context, cert *core.Certificate) error {
	return nil
}
func (pipelineFakeDirectory) UpsertCRL(ctx context.Context, crl *core.CRL) error { return nil }
func (pipelineFakeDirectory) LookupCertificateBySubject(ctx context.Context, subjectDN string, kind core.Kind, country string) ([]*core.Certificate, error) {
	return nil, nil
}
func (pipelineFakeDirectory) LookupCRLByIssuer(ctx context.Context, issuerDN, country string) (*core.CRL, error) {
	return nil, nil
}
func (pipelineFakeDirectory) LookupByFingerprint(ctx context.Context, kind core.Kind, country, fingerprint string) (*core.Certificate, error) {
	return nil, nil
}
func (pipelineFakeDirectory) CountByKind(ctx context.Context, kind core.Kind, country string) (int, error) {
	return 0, nil
}

type pipelineTestLogger struct{}

func (pipelineTestLogger) Debug(string)   {}
func (pipelineTestLogger) Info(string)    {}
func (pipelineTestLogger) Notice(string)  {}
func (pipelineTestLogger) Warning(string) {}
func (pipelineTestLogger) Err(string)     {}
func (pipelineTestLogger) AuditErr(error) {}
func (l pipelineTestLogger) WithField(key string, value interface{}) log.Logger { return l }

func newTestPipeline() (*Pipeline, *pipelineFakeUploads, *pipelineFakeCerts, *pipelineFakeValidations) {
	uploads := newPipelineFakeUploads()
	certs := newPipelineFakeCerts()
	crls := &pipelineFakeCRLs{}
	masterLists := &pipelineFakeMasterLists{}
	validations := &pipelineFakeValidations{}
	fake := clock.NewFake()
	fake.Set(time.Now())
	validator := trustchain.New(pipelineFakeDirectory{}, pipelineTestLogger{}).WithClock(fake)
	p := New(uploads, certs, crls, masterLists, validations, validator, NewBroker(), pipelineTestLogger{}).WithClock(fake)
	return p, uploads, certs, validations
}

func TestIngestRejectsDuplicateFile(t *testing.T) {
	p, _, _, _ := newTestPipeline()
	ctx := context.Background()
	der := generateSelfSignedCSCADER(t)

	if _, err := p.Ingest(ctx, "first.der", der, core.ModeAuto, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Ingest(ctx, "second.der", der, core.ModeAuto, ""); err == nil {
		t.Fatal("expected duplicate file error")
	}
}

func TestProcessIngestsAndValidatesNewCertificate(t *testing.T) {
	p, uploads, certs, validations := newTestPipeline()
	der := generateSelfSignedCSCADER(t)

	upload := &core.Upload{
		ID: core.NewID(), Format: core.FormatDER, State: core.UploadPending,
		PerKindCounts: map[core.Kind]int{}, PerKindDuplicates: map[core.Kind]int{},
	}
	uploads.byID[upload.ID] = upload

	p.process(upload, der, core.KindCSCA)

	if len(certs.inserted) != 1 {
		t.Fatalf("expected 1 inserted certificate, got %d", len(certs.inserted))
	}
	if len(validations.inserted) != 1 {
		t.Fatalf("expected 1 validation result, got %d", len(validations.inserted))
	}
	if validations.inserted[0].Status != core.StatusValid {
		t.Fatalf("expected VALID, got %s", validations.inserted[0].Status)
	}
	if upload.State != core.UploadCompleted {
		t.Fatalf("expected upload COMPLETED, got %s", upload.State)
	}
	if uploads.completed[core.StatusValid] != 1 {
		t.Fatalf("expected outcome count VALID=1, got %+v", uploads.completed)
	}
}

func TestProcessDuplicateCertificateIncrementsCounterWithoutReinsert(t *testing.T) {
	p, uploads, certs, _ := newTestPipeline()
	der := generateSelfSignedCSCADER(t)

	first := &core.Upload{ID: core.NewID(), Format: core.FormatDER, PerKindCounts: map[core.Kind]int{}, PerKindDuplicates: map[core.Kind]int{}}
	uploads.byID[first.ID] = first
	p.process(first, der, core.KindCSCA)

	second := &core.Upload{ID: core.NewID(), Format: core.FormatDER, PerKindCounts: map[core.Kind]int{}, PerKindDuplicates: map[core.Kind]int{}}
	uploads.byID[second.ID] = second
	p.process(second, der, core.KindCSCA)

	if len(certs.inserted) != 1 {
		t.Fatalf("expected the second ingestion to be treated as a duplicate, got %d inserts", len(certs.inserted))
	}
	if second.State != core.UploadCompleted {
		t.Fatalf("expected second upload COMPLETED, got %s", second.State)
	}
}

func TestProcessFailsUploadOnUnparsableContainer(t *testing.T) {
	p, uploads, _, _ := newTestPipeline()
	upload := &core.Upload{ID: core.NewID(), Format: core.FormatDER, PerKindCounts: map[core.Kind]int{}, PerKindDuplicates: map[core.Kind]int{}}
	uploads.byID[upload.ID] = upload

	p.process(upload, []byte{0x30, 0x01, 0xFF}, "")

	if upload.State != core.UploadFailed {
		t.Fatalf("expected FAILED, got %s", upload.State)
	}
	if uploads.failedWith == "" {
		t.Fatal("expected a failure message to be recorded")
	}
}
