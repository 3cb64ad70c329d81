package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// CertificateRepository implements core.CertificateRepository over a
// gorp-backed store.
type CertificateRepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewCertificateRepository(exec dbReadWriter, dialect db.DialectName) *CertificateRepository {
	return &CertificateRepository{exec: exec, dialect: dialect}
}

func (r *CertificateRepository) FindByFingerprint(ctx context.Context, kind core.Kind, fingerprint string) (*core.Certificate, error) {
	var m certificateModel
	err := r.exec.SelectOne(&m,
		"SELECT * FROM certificates WHERE Kind = ? AND Fingerprint = ?", string(kind), fingerprint)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("find certificate by fingerprint: %v", err)
	}
	return m.toDomain(), nil
}

func (r *CertificateRepository) Insert(ctx context.Context, cert *core.Certificate) error {
	if cert.ID == (uuid.UUID{}) {
		cert.ID = core.NewID()
	}
	m := certificateToModel(cert)
	if err := r.exec.Insert(m); err != nil {
		return pkderr.DatabaseErr("insert certificate: %v", err)
	}
	return nil
}

func (r *CertificateRepository) RecordDuplicate(ctx context.Context, certID uuid.UUID, obs core.DuplicateObservation) error {
	existing, err := r.Get(ctx, certID)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkderr.DatabaseErr("record duplicate: certificate %s not found", certID)
	}
	existing.Duplicates = append(existing.Duplicates, obs)
	existing.DuplicateCount = len(existing.Duplicates)
	existing.LastSeenUpload = obs.UploadID
	m := certificateToModel(existing)
	_, err = r.exec.Update(m)
	if err != nil {
		return pkderr.DatabaseErr("record duplicate: %v", err)
	}
	return nil
}

func (r *CertificateRepository) MarkDirectoryStored(ctx context.Context, certID uuid.UUID, stored bool) error {
	_, err := r.exec.Exec("UPDATE certificates SET DirectoryStored = ? WHERE ID = ?",
		r.boolLiteral(stored), certID.String())
	if err != nil {
		return pkderr.DatabaseErr("mark directory stored: %v", err)
	}
	return nil
}

func (r *CertificateRepository) UpdateStatus(ctx context.Context, certID uuid.UUID, status core.ValidationStatus) error {
	_, err := r.exec.Exec("UPDATE certificates SET Status = ? WHERE ID = ?", string(status), certID.String())
	if err != nil {
		return pkderr.DatabaseErr("update certificate status: %v", err)
	}
	return nil
}

func (r *CertificateRepository) ListPendingDirectoryWrites(ctx context.Context, kind core.Kind, limit int) ([]*core.Certificate, error) {
	query := db.Paginate(r.dialect, "SELECT * FROM certificates WHERE Kind = ? AND DirectoryStored = "+r.boolLiteral(false)+" ORDER BY CreatedAt", limit, 0)
	rows, err := r.exec.Select(&certificateModel{}, query, string(kind))
	if err != nil {
		return nil, pkderr.DatabaseErr("list pending directory writes: %v", err)
	}
	return toCertificates(rows), nil
}

func (r *CertificateRepository) CountByKind(ctx context.Context, kind core.Kind) (int, error) {
	var count int
	err := r.exec.SelectOne(&count, "SELECT COUNT(*) FROM certificates WHERE Kind = ?", string(kind))
	if err != nil {
		return 0, pkderr.DatabaseErr("count by kind: %v", err)
	}
	return count, nil
}

// Search builds the free-text/country/kind/status/source filter query
// for /certificates/search (spec.md §6), paginated per dialect.
func (r *CertificateRepository) Search(ctx context.Context, f core.CertificateFilter) ([]*core.Certificate, int, error) {
	var where []string
	var args []interface{}
	if f.Country != "" {
		where = append(where, db.Quote(r.dialect, "Country")+" = ?")
		args = append(args, f.Country)
	}
	if f.Kind != "" {
		where = append(where, db.Quote(r.dialect, "Kind")+" = ?")
		args = append(args, string(f.Kind))
	}
	if f.Status != "" {
		where = append(where, db.Quote(r.dialect, "Status")+" = ?")
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		where = append(where, db.Quote(r.dialect, "Source")+" = ?")
		args = append(args, f.Source)
	}
	if f.FreeText != "" {
		where = append(where, "("+db.Quote(r.dialect, "SubjectDN")+" LIKE ? OR "+db.Quote(r.dialect, "IssuerDN")+" LIKE ? OR "+db.Quote(r.dialect, "Fingerprint")+" LIKE ?)")
		like := "%" + f.FreeText + "%"
		args = append(args, like, like, like)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.exec.SelectOne(&total, "SELECT COUNT(*) FROM certificates"+whereClause, args...); err != nil {
		return nil, 0, pkderr.DatabaseErr("search count: %v", err)
	}

	limit, offset := f.Limit, f.Offset
	if limit <= 0 {
		limit = 50
	}
	query := db.Paginate(r.dialect, "SELECT * FROM certificates"+whereClause+" ORDER BY CreatedAt DESC", limit, offset)
	rows, err := r.exec.Select(&certificateModel{}, query, args...)
	if err != nil {
		return nil, 0, pkderr.DatabaseErr("search: %v", err)
	}
	return toCertificates(rows), total, nil
}

func (r *CertificateRepository) Countries(ctx context.Context) ([]string, error) {
	rows, err := r.exec.Select(new(string), "SELECT DISTINCT Country FROM certificates ORDER BY Country")
	if err != nil {
		return nil, pkderr.DatabaseErr("countries: %v", err)
	}
	countries := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := row.(*string); ok {
			countries = append(countries, *s)
		}
	}
	return countries, nil
}

func (r *CertificateRepository) Get(ctx context.Context, id uuid.UUID) (*core.Certificate, error) {
	var m certificateModel
	err := r.exec.SelectOne(&m, "SELECT * FROM certificates WHERE ID = ?", id.String())
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("get certificate: %v", err)
	}
	return m.toDomain(), nil
}

func (r *CertificateRepository) DeleteByUpload(ctx context.Context, uploadID uuid.UUID) (int, error) {
	res, err := r.exec.Exec("DELETE FROM certificates WHERE FirstSeenUpload = ?", uploadID.String())
	if err != nil {
		return 0, pkderr.DatabaseErr("delete by upload: %v", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *CertificateRepository) boolLiteral(b bool) string {
	if r.dialect == db.DialectB {
		if b {
			return "1"
		}
		return "0"
	}
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func toCertificates(rows []interface{}) []*core.Certificate {
	out := make([]*core.Certificate, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(*certificateModel); ok {
			out = append(out, m.toDomain())
		}
	}
	return out
}

var _ core.CertificateRepository = (*CertificateRepository)(nil)
