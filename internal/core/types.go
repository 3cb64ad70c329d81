// Package core holds the domain types shared by every component of
// the trust-material pipeline: Certificate, CRL, MasterList,
// LinkCertificate, Upload, ValidationResult, ReconciliationRun,
// SyncStatusSnapshot, PAVerification and their child records.
//
// Polymorphism over certificate kinds follows spec.md's Design Notes:
// a tagged variant with a Kind discriminator, dispatched on explicitly
// by callers, rather than a class hierarchy (core/objects.go in the
// teacher repo takes the same flat-struct-plus-enum approach for its
// own ACME resource types).
package core

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the five certificate roles the pipeline handles.
type Kind string

const (
	KindCSCA  Kind = "CSCA"
	KindMLSC  Kind = "MLSC"
	KindDSC   Kind = "DSC"
	KindDSCNC Kind = "DSC_NC"
	KindLC    Kind = "LC"
)

// ValidationStatus is the outcome of the Trust-Chain Validator for one
// certificate.
type ValidationStatus string

const (
	StatusValid        ValidationStatus = "VALID"
	StatusExpiredValid ValidationStatus = "EXPIRED_VALID"
	StatusInvalid      ValidationStatus = "INVALID"
	StatusPending      ValidationStatus = "PENDING"
	StatusError        ValidationStatus = "ERROR"
)

// UploadFormat enumerates the ingestible container formats.
type UploadFormat string

const (
	FormatLDIF UploadFormat = "LDIF"
	FormatML   UploadFormat = "ML"
	FormatPEM  UploadFormat = "PEM"
	FormatDER  UploadFormat = "DER"
	FormatP7B  UploadFormat = "P7B"
	FormatDL   UploadFormat = "DL"
	FormatCRL  UploadFormat = "CRL"
)

// ProcessingMode controls whether ingestion runs unattended or awaits
// an operator's confirmation for ambiguous items.
type ProcessingMode string

const (
	ModeAuto   ProcessingMode = "AUTO"
	ModeManual ProcessingMode = "MANUAL"
)

// UploadState is the PENDING -> PROCESSING -> {COMPLETED,FAILED} machine
// of spec.md §4.3.
type UploadState string

const (
	UploadPending    UploadState = "PENDING"
	UploadProcessing UploadState = "PROCESSING"
	UploadCompleted  UploadState = "COMPLETED"
	UploadFailed     UploadState = "FAILED"
)

// SyncStatus summarises a divergence measurement between the two
// stores.
type SyncStatus string

const (
	SyncSynced      SyncStatus = "SYNCED"
	SyncDiscrepancy SyncStatus = "DISCREPANCY"
	SyncError       SyncStatus = "ERROR"
	SyncUnknown     SyncStatus = "UNKNOWN"
)

// ReconTrigger records what started a ReconciliationRun.
type ReconTrigger string

const (
	TriggerManual    ReconTrigger = "manual"
	TriggerScheduled ReconTrigger = "scheduled"
)

// ReconState is the lifecycle of a ReconciliationRun.
type ReconState string

const (
	ReconInProgress ReconState = "IN_PROGRESS"
	ReconSuccess    ReconState = "SUCCESS"
	ReconPartial    ReconState = "PARTIAL"
	ReconFailed     ReconState = "FAILED"
)

// PAStatus is the aggregate verdict of one PA run.
type PAStatus string

const (
	PAPending PAStatus = "PENDING"
	PAValid   PAStatus = "VALID"
	PAInvalid PAStatus = "INVALID"
	PAError   PAStatus = "ERROR"
)

// DuplicateObservation records one re-ingestion of an
// already-known (kind, fingerprint) pair.
type DuplicateObservation struct {
	UploadID   uuid.UUID `json:"uploadId"`
	SourceType string    `json:"sourceType"` // e.g. ML_FILE, LDIF, PEM
	ObservedAt time.Time `json:"observedAt"`
}

// LintFinding is an advisory, non-blocking zlint result attached to a
// Certificate's most recent ValidationResult. It never changes the
// PASS/FAIL vocabulary spec.md §4.4 defines; it is a supplemental
// enrichment (see SPEC_FULL.md).
type LintFinding struct {
	LintName string `json:"lintName"`
	Status   string `json:"status"` // pass, warn, error, fatal, NA, NE
	Details  string `json:"details,omitempty"`
}

// Certificate is an X.509 end-entity or CA certificate observed by the
// pipeline.
type Certificate struct {
	ID               uuid.UUID
	Kind             Kind
	Country          string // ISO alpha-2
	SubjectDN        string
	IssuerDN         string
	SerialHex        string
	Fingerprint      string // lowercase 64-hex SHA-256 of DER
	NotBefore        time.Time
	NotAfter         time.Time
	PublicKeyAlgo    string
	PublicKeyBits    int
	SignatureAlgo    string
	DER              []byte
	Status           ValidationStatus
	Source           string // e.g. ML_FILE, LDIF, PEM, DER, P7B, PA_EXTRACTED
	DirectoryStored  bool
	DuplicateCount   int
	Duplicates       []DuplicateObservation
	LintFindings     []LintFinding
	FirstSeenUpload  uuid.UUID
	LastSeenUpload   uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CRL is a parsed X.509 certificate revocation list.
type CRL struct {
	ID              uuid.UUID
	Country         string
	IssuerDN        string
	ThisUpdate      time.Time
	NextUpdate      time.Time
	Number          string
	Fingerprint     string
	DER             []byte
	RevokedSerials  map[string]time.Time // serial hex -> revocation date
	DirectoryStored bool
	CreatedAt       time.Time
}

// MasterList is a CMS SignedData object whose encapsulated content is
// an ICAO Master List (a SEQUENCE of CSCA certificates).
type MasterList struct {
	ID               uuid.UUID
	SignerCountry    string
	Version          int
	SigningTime      time.Time
	Fingerprint      string
	MLSCFingerprint  string
	CertificateCount int
	CMS              []byte
	DirectoryStored  bool
	CreatedAt        time.Time
}

// LinkCertificate is a CSCA-to-CSCA key-rollover bridge certificate.
type LinkCertificate struct {
	Certificate
	OldCSCAFingerprint string
	NewCSCAFingerprint string
}

// Upload is one ingestion event.
type Upload struct {
	ID                uuid.UUID
	Filename          string
	SizeBytes         int64
	SHA256            string
	Format            UploadFormat
	Mode              ProcessingMode
	State             UploadState
	TotalEntries      int
	ProcessedEntries  int
	PerKindCounts     map[Kind]int
	PerKindDuplicates map[Kind]int
	OutcomeCounts     map[ValidationStatus]int
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ValidationResult is the per-certificate outcome of the Trust-Chain
// Validator.
type ValidationResult struct {
	ID                   uuid.UUID
	CertificateID        uuid.UUID
	UploadID             uuid.UUID
	Status               ValidationStatus
	TrustChainValid      bool
	SignatureValid       bool
	ValidityPeriodValid  bool
	CurrentlyExpired     bool
	KeyUsageValid        bool
	CRLChecked           bool
	Revoked              bool
	ResolvedIssuerFP     string
	CRLID                uuid.UUID
	Reason               string
	LintFindings         []LintFinding
	CreatedAt            time.Time
}

// ReconciliationLogEntry records the outcome of one item touched by a
// ReconciliationRun.
type ReconciliationLogEntry struct {
	ID          uuid.UUID
	RunID       uuid.UUID
	Fingerprint string
	Kind        Kind
	Country     string
	Action      string // ADD
	Outcome     string // SUCCESS, FAILED
	ErrorMsg    string
	DurationMS  int64
	CreatedAt   time.Time
}

// ReconciliationRun is a single divergence-repair execution.
type ReconciliationRun struct {
	ID               uuid.UUID
	Trigger          ReconTrigger
	DryRun           bool
	State            ReconState
	StartedAt        time.Time
	CompletedAt      time.Time
	PerKindAdded     map[Kind]int
	PerKindFailed    map[Kind]int
	SuccessCount     int
	FailedCount      int
	SnapshotID       uuid.UUID
	Entries          []ReconciliationLogEntry
}

// SyncStatusSnapshot is a single divergence measurement.
type SyncStatusSnapshot struct {
	ID                uuid.UUID
	MeasuredAt        time.Time
	PerKindDBCount    map[Kind]int
	PerKindDirCount   map[Kind]int
	PerKindDiscrep    map[Kind]int
	PerCountryDB      map[string]map[Kind]int
	PerCountryDir     map[string]map[Kind]int
	OverallStatus     SyncStatus
	CheckDurationMS   int64
}

// DataGroupCheck is the per-DG outcome of one PAVerification.
type DataGroupCheck struct {
	ID             uuid.UUID
	PAVerificationID uuid.UUID
	DGNumber       int
	ExpectedHash   string
	ComputedHash   string
	Algorithm      string
	Matched        bool
	Missing        bool // present in SOD, absent from input
	Unexpected     bool // present in input, absent from SOD
}

// PAVerification is the outcome of one Passive Authentication run.
type PAVerification struct {
	ID                 uuid.UUID
	IssuingCountry     string
	DocumentNumber     string
	SODSHA256          string
	DSCSubjectDN       string
	DSCFingerprint     string
	ResolvedCSCAFP     string
	TrustChainValid    bool
	SODSignatureValid  bool
	DGHashesValid      bool
	CRLChecked         bool
	Revoked            bool
	Status             PAStatus
	Reasons            []string
	ProcessingMS       int64
	ClientIP           string
	UserAgent          string
	DataGroups         []DataGroupCheck
	CreatedAt          time.Time
}

// CatalogNotification records that the scheduler observed a newer
// upstream ICAO PKD catalog version than the one last seen (spec.md
// §4.8's "external-catalog version poll").
type CatalogNotification struct {
	ID             uuid.UUID
	ObservedAt     time.Time
	PreviousVersion string
	NewVersion      string
	Acknowledged    bool
}

// NewID returns a fresh opaque 128-bit identifier.
func NewID() uuid.UUID {
	return uuid.New()
}
