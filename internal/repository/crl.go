package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// CRLRepository implements core.CRLRepository.
type CRLRepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewCRLRepository(exec dbReadWriter, dialect db.DialectName) *CRLRepository {
	return &CRLRepository{exec: exec, dialect: dialect}
}

func (r *CRLRepository) FindByIssuer(ctx context.Context, country, issuerDN string) (*core.CRL, error) {
	var m crlModel
	err := r.exec.SelectOne(&m, "SELECT * FROM crls WHERE Country = ? AND IssuerDN = ?", country, issuerDN)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("find CRL by issuer: %v", err)
	}
	return m.toDomain(), nil
}

// Upsert replaces an existing CRL for the same (country, issuerDN) only
// if crl.ThisUpdate is newer, per spec.md §4.5's "replaced if newer (by
// thisUpdate for CRLs)" rule, and ignores an older or equal one; when no
// CRL exists for that issuer it inserts a new row.
func (r *CRLRepository) Upsert(ctx context.Context, crl *core.CRL) error {
	existing, err := r.FindByIssuer(ctx, crl.Country, crl.IssuerDN)
	if err != nil {
		return err
	}
	if existing == nil {
		if crl.ID == (uuid.UUID{}) {
			crl.ID = core.NewID()
		}
		if err := r.exec.Insert(crlToModel(crl)); err != nil {
			return pkderr.DatabaseErr("insert CRL: %v", err)
		}
		return nil
	}
	if !crl.ThisUpdate.After(existing.ThisUpdate) {
		return nil
	}
	crl.ID = existing.ID
	if _, err := r.exec.Update(crlToModel(crl)); err != nil {
		return pkderr.DatabaseErr("update CRL: %v", err)
	}
	return nil
}

func (r *CRLRepository) MarkDirectoryStored(ctx context.Context, crlID uuid.UUID, stored bool) error {
	_, err := r.exec.Exec("UPDATE crls SET DirectoryStored = ? WHERE ID = ?", boolLiteral(r.dialect, stored), crlID.String())
	if err != nil {
		return pkderr.DatabaseErr("mark CRL directory stored: %v", err)
	}
	return nil
}

func (r *CRLRepository) ListPendingDirectoryWrites(ctx context.Context, limit int) ([]*core.CRL, error) {
	query := db.Paginate(r.dialect, "SELECT * FROM crls WHERE DirectoryStored = "+boolLiteral(r.dialect, false)+" ORDER BY CreatedAt", limit, 0)
	rows, err := r.exec.Select(&crlModel{}, query)
	if err != nil {
		return nil, pkderr.DatabaseErr("list pending CRL writes: %v", err)
	}
	out := make([]*core.CRL, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(*crlModel); ok {
			out = append(out, m.toDomain())
		}
	}
	return out, nil
}

func (r *CRLRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.exec.SelectOne(&count, "SELECT COUNT(*) FROM crls"); err != nil {
		return 0, pkderr.DatabaseErr("count CRLs: %v", err)
	}
	return count, nil
}

func boolLiteral(dialect db.DialectName, b bool) string {
	if dialect == db.DialectB {
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

var _ core.CRLRepository = (*CRLRepository)(nil)
