// Repository and adapter interfaces, grounded on the teacher's
// core/interfaces.go split between narrow, privilege-separated
// interfaces (StorageGetter / StorageAdder) rather than one broad
// persistence facade.
package core

import (
	"context"

	"github.com/google/uuid"
)

// CertificateRepository is the typed persistence surface for
// Certificate rows.
type CertificateRepository interface {
	FindByFingerprint(ctx context.Context, kind Kind, fingerprint string) (*Certificate, error)
	Insert(ctx context.Context, cert *Certificate) error
	RecordDuplicate(ctx context.Context, certID uuid.UUID, obs DuplicateObservation) error
	MarkDirectoryStored(ctx context.Context, certID uuid.UUID, stored bool) error
	UpdateStatus(ctx context.Context, certID uuid.UUID, status ValidationStatus) error
	ListPendingDirectoryWrites(ctx context.Context, kind Kind, limit int) ([]*Certificate, error)
	CountByKind(ctx context.Context, kind Kind) (int, error)
	Search(ctx context.Context, f CertificateFilter) ([]*Certificate, int, error)
	Countries(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id uuid.UUID) (*Certificate, error)
	DeleteByUpload(ctx context.Context, uploadID uuid.UUID) (int, error)
}

// CertificateFilter carries /certificates/search's query parameters.
type CertificateFilter struct {
	Country  string
	Kind     Kind
	Status   ValidationStatus
	Source   string
	FreeText string
	Offset   int
	Limit    int
}

// CRLRepository is the typed persistence surface for CRL rows.
type CRLRepository interface {
	FindByIssuer(ctx context.Context, country, issuerDN string) (*CRL, error)
	Upsert(ctx context.Context, crl *CRL) error
	MarkDirectoryStored(ctx context.Context, crlID uuid.UUID, stored bool) error
	ListPendingDirectoryWrites(ctx context.Context, limit int) ([]*CRL, error)
	CountAll(ctx context.Context) (int, error)
}

// MasterListRepository is the typed persistence surface for MasterList
// rows.
type MasterListRepository interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*MasterList, error)
	Insert(ctx context.Context, ml *MasterList) error
	MarkDirectoryStored(ctx context.Context, id uuid.UUID, stored bool) error
}

// UploadRepository is the typed persistence surface for Upload rows
// and drives the PENDING -> PROCESSING -> {COMPLETED,FAILED} machine.
type UploadRepository interface {
	Create(ctx context.Context, u *Upload) error
	FindBySHA256(ctx context.Context, sha string) (*Upload, error)
	TransitionToProcessing(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, processed int, perKind map[Kind]int, perKindDup map[Kind]int) error
	Complete(ctx context.Context, id uuid.UUID, total, processed int, perKind map[Kind]int, perKindDup map[Kind]int, outcome map[ValidationStatus]int) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
	Get(ctx context.Context, id uuid.UUID) (*Upload, error)
	List(ctx context.Context, offset, limit int) ([]*Upload, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ValidationRepository is the typed persistence surface for
// ValidationResult rows.
type ValidationRepository interface {
	Insert(ctx context.Context, vr *ValidationResult) error
	LatestForCertificate(ctx context.Context, certID uuid.UUID) (*ValidationResult, error)
	ListWithExpiry(ctx context.Context) ([]*ValidationResult, error)
	UpdateValidityPeriod(ctx context.Context, id uuid.UUID, valid, currentlyExpired bool, status ValidationStatus) error
}

// ReconciliationRepository is the typed persistence surface for
// ReconciliationRun and SyncStatusSnapshot rows.
type ReconciliationRepository interface {
	CreateRun(ctx context.Context, run *ReconciliationRun) error
	AppendLogEntry(ctx context.Context, entry *ReconciliationLogEntry) error
	CompleteRun(ctx context.Context, run *ReconciliationRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*ReconciliationRun, error)
	ListRuns(ctx context.Context, offset, limit int) ([]*ReconciliationRun, int, error)
	SaveSnapshot(ctx context.Context, snap *SyncStatusSnapshot) error
	LatestSnapshot(ctx context.Context) (*SyncStatusSnapshot, error)
}

// PARepository is the typed persistence surface for PAVerification and
// DataGroupCheck rows.
type PARepository interface {
	Create(ctx context.Context, pav *PAVerification) error
	Finalize(ctx context.Context, pav *PAVerification) error
	Get(ctx context.Context, id uuid.UUID) (*PAVerification, error)
	List(ctx context.Context, offset, limit int) ([]*PAVerification, int, error)
	Statistics(ctx context.Context) (total, valid, invalid, errored int, err error)
}

// CatalogNotificationRepository is the typed persistence surface for
// CatalogNotification rows, the supplemented external-catalog-poll
// feature of spec.md §4.8 (SPEC_FULL.md's "Supplemented features").
type CatalogNotificationRepository interface {
	Create(ctx context.Context, n *CatalogNotification) error
	Latest(ctx context.Context) (*CatalogNotification, error)
	List(ctx context.Context, offset, limit int) ([]*CatalogNotification, int, error)
}

// DirectoryAdapter is the typed read/write surface over the directory
// tree, at the fixed DN templates spec.md §4.5 defines.
type DirectoryAdapter interface {
	EnsureCountry(ctx context.Context, alpha2 string) error
	EnsureOrganisationalUnit(ctx context.Context, kind Kind, alpha2 string) error
	UpsertCertificate(ctx context.Context, cert *Certificate) error
	UpsertCRL(ctx context.Context, crl *CRL) error
	LookupCertificateBySubject(ctx context.Context, subjectDN string, kind Kind, country string) ([]*Certificate, error)
	LookupCRLByIssuer(ctx context.Context, issuerDN, country string) (*CRL, error)
	LookupByFingerprint(ctx context.Context, kind Kind, country, fingerprint string) (*Certificate, error)
	CountByKind(ctx context.Context, kind Kind, country string) (int, error)
}
