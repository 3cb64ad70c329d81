package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
)

// Row models mirror the core domain types but use string primary/
// foreign keys (gorp has no native uuid.UUID binding) and let
// internal/db's PKDTypeConverter handle the slice/map/enum fields
// directly, the same division of labour the teacher's own model.go
// keeps: db-shape structs here, domain semantics in core.

type certificateModel struct {
	ID                 string `db:"id"`
	Kind               core.Kind
	Country            string
	SubjectDN          string
	IssuerDN           string
	SerialHex          string
	Fingerprint        string
	NotBefore          time.Time
	NotAfter           time.Time
	PublicKeyAlgo      string
	PublicKeyBits      int
	SignatureAlgo      string
	DER                []byte
	Status             core.ValidationStatus
	Source             string
	DirectoryStored    bool
	DuplicateCount     int
	Duplicates         []core.DuplicateObservation
	LintFindings       []core.LintFinding
	FirstSeenUpload    string
	LastSeenUpload     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func certificateToModel(c *core.Certificate) *certificateModel {
	return &certificateModel{
		ID: c.ID.String(), Kind: c.Kind, Country: c.Country, SubjectDN: c.SubjectDN,
		IssuerDN: c.IssuerDN, SerialHex: c.SerialHex, Fingerprint: c.Fingerprint,
		NotBefore: c.NotBefore, NotAfter: c.NotAfter, PublicKeyAlgo: c.PublicKeyAlgo,
		PublicKeyBits: c.PublicKeyBits, SignatureAlgo: c.SignatureAlgo, DER: c.DER,
		Status: c.Status, Source: c.Source, DirectoryStored: c.DirectoryStored, DuplicateCount: c.DuplicateCount,
		Duplicates: c.Duplicates, LintFindings: c.LintFindings,
		FirstSeenUpload: uuidOrZero(c.FirstSeenUpload), LastSeenUpload: uuidOrZero(c.LastSeenUpload),
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (m *certificateModel) toDomain() *core.Certificate {
	return &core.Certificate{
		ID: parseUUID(m.ID), Kind: m.Kind, Country: m.Country, SubjectDN: m.SubjectDN,
		IssuerDN: m.IssuerDN, SerialHex: m.SerialHex, Fingerprint: m.Fingerprint,
		NotBefore: m.NotBefore, NotAfter: m.NotAfter, PublicKeyAlgo: m.PublicKeyAlgo,
		PublicKeyBits: m.PublicKeyBits, SignatureAlgo: m.SignatureAlgo, DER: m.DER,
		Status: m.Status, Source: m.Source, DirectoryStored: m.DirectoryStored, DuplicateCount: m.DuplicateCount,
		Duplicates: m.Duplicates, LintFindings: m.LintFindings,
		FirstSeenUpload: parseUUID(m.FirstSeenUpload), LastSeenUpload: parseUUID(m.LastSeenUpload),
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

type crlModel struct {
	ID              string `db:"id"`
	Country         string
	IssuerDN        string
	ThisUpdate      time.Time
	NextUpdate      time.Time
	Number          string
	Fingerprint     string
	DER             []byte
	RevokedSerials  map[string]string // serial hex -> RFC3339 revocation date
	DirectoryStored bool
	CreatedAt       time.Time
}

func crlToModel(c *core.CRL) *crlModel {
	revoked := make(map[string]string, len(c.RevokedSerials))
	for serial, t := range c.RevokedSerials {
		revoked[serial] = t.Format(time.RFC3339)
	}
	return &crlModel{
		ID: c.ID.String(), Country: c.Country, IssuerDN: c.IssuerDN, ThisUpdate: c.ThisUpdate,
		NextUpdate: c.NextUpdate, Number: c.Number, Fingerprint: c.Fingerprint, DER: c.DER,
		RevokedSerials: revoked, DirectoryStored: c.DirectoryStored, CreatedAt: c.CreatedAt,
	}
}

func (m *crlModel) toDomain() *core.CRL {
	revoked := make(map[string]time.Time, len(m.RevokedSerials))
	for serial, s := range m.RevokedSerials {
		t, _ := time.Parse(time.RFC3339, s)
		revoked[serial] = t
	}
	return &core.CRL{
		ID: parseUUID(m.ID), Country: m.Country, IssuerDN: m.IssuerDN, ThisUpdate: m.ThisUpdate,
		NextUpdate: m.NextUpdate, Number: m.Number, Fingerprint: m.Fingerprint, DER: m.DER,
		RevokedSerials: revoked, DirectoryStored: m.DirectoryStored, CreatedAt: m.CreatedAt,
	}
}

type masterListModel struct {
	ID               string `db:"id"`
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

func masterListToModel(m *core.MasterList) *masterListModel {
	return &masterListModel{
		ID: m.ID.String(), SignerCountry: m.SignerCountry, Version: m.Version, SigningTime: m.SigningTime,
		Fingerprint: m.Fingerprint, MLSCFingerprint: m.MLSCFingerprint, CertificateCount: m.CertificateCount,
		CMS: m.CMS, DirectoryStored: m.DirectoryStored, CreatedAt: m.CreatedAt,
	}
}

func (m *masterListModel) toDomain() *core.MasterList {
	return &core.MasterList{
		ID: parseUUID(m.ID), SignerCountry: m.SignerCountry, Version: m.Version, SigningTime: m.SigningTime,
		Fingerprint: m.Fingerprint, MLSCFingerprint: m.MLSCFingerprint, CertificateCount: m.CertificateCount,
		CMS: m.CMS, DirectoryStored: m.DirectoryStored, CreatedAt: m.CreatedAt,
	}
}

type uploadModel struct {
	ID                string `db:"id"`
	Filename          string
	SizeBytes         int64
	SHA256            string
	Format            core.UploadFormat
	Mode              core.ProcessingMode
	State             core.UploadState
	TotalEntries      int
	ProcessedEntries  int
	PerKindCounts     map[core.Kind]int
	PerKindDuplicates map[core.Kind]int
	OutcomeCounts     map[core.ValidationStatus]int
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func uploadToModel(u *core.Upload) *uploadModel {
	return &uploadModel{
		ID: u.ID.String(), Filename: u.Filename, SizeBytes: u.SizeBytes, SHA256: u.SHA256,
		Format: u.Format, Mode: u.Mode, State: u.State, TotalEntries: u.TotalEntries,
		ProcessedEntries: u.ProcessedEntries, PerKindCounts: u.PerKindCounts,
		PerKindDuplicates: u.PerKindDuplicates, OutcomeCounts: u.OutcomeCounts,
		ErrorMessage: u.ErrorMessage, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (m *uploadModel) toDomain() *core.Upload {
	return &core.Upload{
		ID: parseUUID(m.ID), Filename: m.Filename, SizeBytes: m.SizeBytes, SHA256: m.SHA256,
		Format: m.Format, Mode: m.Mode, State: m.State, TotalEntries: m.TotalEntries,
		ProcessedEntries: m.ProcessedEntries, PerKindCounts: m.PerKindCounts,
		PerKindDuplicates: m.PerKindDuplicates, OutcomeCounts: m.OutcomeCounts,
		ErrorMessage: m.ErrorMessage, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

type validationResultModel struct {
	ID                  string `db:"id"`
	CertificateID       string
	UploadID            string
	Status              core.ValidationStatus
	TrustChainValid     bool
	SignatureValid      bool
	ValidityPeriodValid bool
	CurrentlyExpired    bool
	KeyUsageValid       bool
	CRLChecked          bool
	Revoked             bool
	ResolvedIssuerFP    string
	CRLID               string
	Reason              string
	LintFindings        []core.LintFinding
	CreatedAt           time.Time
}

func validationResultToModel(v *core.ValidationResult) *validationResultModel {
	return &validationResultModel{
		ID: v.ID.String(), CertificateID: v.CertificateID.String(), UploadID: uuidOrZero(v.UploadID),
		Status: v.Status, TrustChainValid: v.TrustChainValid, SignatureValid: v.SignatureValid,
		ValidityPeriodValid: v.ValidityPeriodValid, CurrentlyExpired: v.CurrentlyExpired,
		KeyUsageValid: v.KeyUsageValid, CRLChecked: v.CRLChecked, Revoked: v.Revoked,
		ResolvedIssuerFP: v.ResolvedIssuerFP, CRLID: uuidOrZero(v.CRLID), Reason: v.Reason,
		LintFindings: v.LintFindings, CreatedAt: v.CreatedAt,
	}
}

func (m *validationResultModel) toDomain() *core.ValidationResult {
	return &core.ValidationResult{
		ID: parseUUID(m.ID), CertificateID: parseUUID(m.CertificateID), UploadID: parseUUID(m.UploadID),
		Status: m.Status, TrustChainValid: m.TrustChainValid, SignatureValid: m.SignatureValid,
		ValidityPeriodValid: m.ValidityPeriodValid, CurrentlyExpired: m.CurrentlyExpired,
		KeyUsageValid: m.KeyUsageValid, CRLChecked: m.CRLChecked, Revoked: m.Revoked,
		ResolvedIssuerFP: m.ResolvedIssuerFP, CRLID: parseUUID(m.CRLID), Reason: m.Reason,
		LintFindings: m.LintFindings, CreatedAt: m.CreatedAt,
	}
}

type reconciliationRunModel struct {
	ID            string `db:"id"`
	Trigger       core.ReconTrigger
	DryRun        bool
	State         core.ReconState
	StartedAt     time.Time
	CompletedAt   time.Time
	PerKindAdded  map[core.Kind]int
	PerKindFailed map[core.Kind]int
	SuccessCount  int
	FailedCount   int
	SnapshotID    string
}

func reconciliationRunToModel(r *core.ReconciliationRun) *reconciliationRunModel {
	return &reconciliationRunModel{
		ID: r.ID.String(), Trigger: r.Trigger, DryRun: r.DryRun, State: r.State,
		StartedAt: r.StartedAt, CompletedAt: r.CompletedAt, PerKindAdded: r.PerKindAdded,
		PerKindFailed: r.PerKindFailed, SuccessCount: r.SuccessCount, FailedCount: r.FailedCount,
		SnapshotID: uuidOrZero(r.SnapshotID),
	}
}

func (m *reconciliationRunModel) toDomain() *core.ReconciliationRun {
	return &core.ReconciliationRun{
		ID: parseUUID(m.ID), Trigger: m.Trigger, DryRun: m.DryRun, State: m.State,
		StartedAt: m.StartedAt, CompletedAt: m.CompletedAt, PerKindAdded: m.PerKindAdded,
		PerKindFailed: m.PerKindFailed, SuccessCount: m.SuccessCount, FailedCount: m.FailedCount,
		SnapshotID: parseUUID(m.SnapshotID),
	}
}

type reconciliationLogEntryModel struct {
	ID          string `db:"id"`
	RunID       string
	Fingerprint string
	Kind        core.Kind
	Country     string
	Action      string
	Outcome     string
	ErrorMsg    string
	DurationMS  int64
	CreatedAt   time.Time
}

func reconciliationLogEntryToModel(e *core.ReconciliationLogEntry) *reconciliationLogEntryModel {
	return &reconciliationLogEntryModel{
		ID: e.ID.String(), RunID: e.RunID.String(), Fingerprint: e.Fingerprint, Kind: e.Kind,
		Country: e.Country, Action: e.Action, Outcome: e.Outcome, ErrorMsg: e.ErrorMsg,
		DurationMS: e.DurationMS, CreatedAt: e.CreatedAt,
	}
}

func (m *reconciliationLogEntryModel) toDomain() core.ReconciliationLogEntry {
	return core.ReconciliationLogEntry{
		ID: parseUUID(m.ID), RunID: parseUUID(m.RunID), Fingerprint: m.Fingerprint, Kind: m.Kind,
		Country: m.Country, Action: m.Action, Outcome: m.Outcome, ErrorMsg: m.ErrorMsg,
		DurationMS: m.DurationMS, CreatedAt: m.CreatedAt,
	}
}

type syncStatusSnapshotModel struct {
	ID              string `db:"id"`
	MeasuredAt      time.Time
	PerKindDBCount  map[core.Kind]int
	PerKindDirCount map[core.Kind]int
	PerKindDiscrep  map[core.Kind]int
	PerCountryDB    map[string]map[core.Kind]int
	PerCountryDir   map[string]map[core.Kind]int
	OverallStatus   core.SyncStatus
	CheckDurationMS int64
}

func syncStatusSnapshotToModel(s *core.SyncStatusSnapshot) *syncStatusSnapshotModel {
	return &syncStatusSnapshotModel{
		ID: s.ID.String(), MeasuredAt: s.MeasuredAt, PerKindDBCount: s.PerKindDBCount,
		PerKindDirCount: s.PerKindDirCount, PerKindDiscrep: s.PerKindDiscrep,
		PerCountryDB: s.PerCountryDB, PerCountryDir: s.PerCountryDir,
		OverallStatus: s.OverallStatus, CheckDurationMS: s.CheckDurationMS,
	}
}

func (m *syncStatusSnapshotModel) toDomain() *core.SyncStatusSnapshot {
	return &core.SyncStatusSnapshot{
		ID: parseUUID(m.ID), MeasuredAt: m.MeasuredAt, PerKindDBCount: m.PerKindDBCount,
		PerKindDirCount: m.PerKindDirCount, PerKindDiscrep: m.PerKindDiscrep,
		PerCountryDB: m.PerCountryDB, PerCountryDir: m.PerCountryDir,
		OverallStatus: m.OverallStatus, CheckDurationMS: m.CheckDurationMS,
	}
}

type paVerificationModel struct {
	ID                string `db:"id"`
	IssuingCountry    string
	DocumentNumber    string
	SODSHA256         string
	DSCSubjectDN      string
	DSCFingerprint    string
	ResolvedCSCAFP    string
	TrustChainValid   bool
	SODSignatureValid bool
	DGHashesValid     bool
	CRLChecked        bool
	Revoked           bool
	Status            core.PAStatus
	Reasons           []string
	ProcessingMS      int64
	ClientIP          string
	UserAgent         string
	CreatedAt         time.Time
}

func paVerificationToModel(p *core.PAVerification) *paVerificationModel {
	return &paVerificationModel{
		ID: p.ID.String(), IssuingCountry: p.IssuingCountry, DocumentNumber: p.DocumentNumber,
		SODSHA256: p.SODSHA256, DSCSubjectDN: p.DSCSubjectDN, DSCFingerprint: p.DSCFingerprint,
		ResolvedCSCAFP: p.ResolvedCSCAFP, TrustChainValid: p.TrustChainValid,
		SODSignatureValid: p.SODSignatureValid, DGHashesValid: p.DGHashesValid,
		CRLChecked: p.CRLChecked, Revoked: p.Revoked, Status: p.Status, Reasons: p.Reasons,
		ProcessingMS: p.ProcessingMS, ClientIP: p.ClientIP, UserAgent: p.UserAgent, CreatedAt: p.CreatedAt,
	}
}

func (m *paVerificationModel) toDomain() *core.PAVerification {
	return &core.PAVerification{
		ID: parseUUID(m.ID), IssuingCountry: m.IssuingCountry, DocumentNumber: m.DocumentNumber,
		SODSHA256: m.SODSHA256, DSCSubjectDN: m.DSCSubjectDN, DSCFingerprint: m.DSCFingerprint,
		ResolvedCSCAFP: m.ResolvedCSCAFP, TrustChainValid: m.TrustChainValid,
		SODSignatureValid: m.SODSignatureValid, DGHashesValid: m.DGHashesValid,
		CRLChecked: m.CRLChecked, Revoked: m.Revoked, Status: m.Status, Reasons: m.Reasons,
		ProcessingMS: m.ProcessingMS, ClientIP: m.ClientIP, UserAgent: m.UserAgent, CreatedAt: m.CreatedAt,
	}
}

type dataGroupCheckModel struct {
	ID               string `db:"id"`
	PAVerificationID string
	DGNumber         int
	ExpectedHash     string
	ComputedHash     string
	Algorithm        string
	Matched          bool
	Missing          bool
	Unexpected       bool
}

func dataGroupCheckToModel(d *core.DataGroupCheck) *dataGroupCheckModel {
	return &dataGroupCheckModel{
		ID: d.ID.String(), PAVerificationID: d.PAVerificationID.String(), DGNumber: d.DGNumber,
		ExpectedHash: d.ExpectedHash, ComputedHash: d.ComputedHash, Algorithm: d.Algorithm,
		Matched: d.Matched, Missing: d.Missing, Unexpected: d.Unexpected,
	}
}

func (m *dataGroupCheckModel) toDomain() core.DataGroupCheck {
	return core.DataGroupCheck{
		ID: parseUUID(m.ID), PAVerificationID: parseUUID(m.PAVerificationID), DGNumber: m.DGNumber,
		ExpectedHash: m.ExpectedHash, ComputedHash: m.ComputedHash, Algorithm: m.Algorithm,
		Matched: m.Matched, Missing: m.Missing, Unexpected: m.Unexpected,
	}
}

type catalogNotificationModel struct {
	ID              string `db:"id"`
	ObservedAt      time.Time
	PreviousVersion string
	NewVersion      string
	Acknowledged    bool
}

func catalogNotificationToModel(n *core.CatalogNotification) *catalogNotificationModel {
	return &catalogNotificationModel{
		ID: n.ID.String(), ObservedAt: n.ObservedAt, PreviousVersion: n.PreviousVersion,
		NewVersion: n.NewVersion, Acknowledged: n.Acknowledged,
	}
}

func (m *catalogNotificationModel) toDomain() *core.CatalogNotification {
	return &core.CatalogNotification{
		ID: parseUUID(m.ID), ObservedAt: m.ObservedAt, PreviousVersion: m.PreviousVersion,
		NewVersion: m.NewVersion, Acknowledged: m.Acknowledged,
	}
}

func parseUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.UUID{}
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}
	}
	return id
}

func uuidOrZero(id uuid.UUID) string {
	if id == (uuid.UUID{}) {
		return ""
	}
	return id.String()
}
