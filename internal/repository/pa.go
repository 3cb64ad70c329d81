package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// PARepository implements core.PARepository.
type PARepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewPARepository(exec dbReadWriter, dialect db.DialectName) *PARepository {
	return &PARepository{exec: exec, dialect: dialect}
}

func (r *PARepository) Create(ctx context.Context, pav *core.PAVerification) error {
	if pav.ID == (uuid.UUID{}) {
		pav.ID = core.NewID()
	}
	if pav.Status == "" {
		pav.Status = core.PAPending
	}
	if err := r.exec.Insert(paVerificationToModel(pav)); err != nil {
		return pkderr.DatabaseErr("create PA verification: %v", err)
	}
	return nil
}

// Finalize persists the verdict and per-DG check rows of a completed
// PA run.
func (r *PARepository) Finalize(ctx context.Context, pav *core.PAVerification) error {
	if _, err := r.exec.Update(paVerificationToModel(pav)); err != nil {
		return pkderr.DatabaseErr("finalize PA verification: %v", err)
	}
	for i := range pav.DataGroups {
		dg := &pav.DataGroups[i]
		if dg.ID == (uuid.UUID{}) {
			dg.ID = core.NewID()
		}
		dg.PAVerificationID = pav.ID
		if err := r.exec.Insert(dataGroupCheckToModel(dg)); err != nil {
			return pkderr.DatabaseErr("insert data group check: %v", err)
		}
	}
	return nil
}

func (r *PARepository) Get(ctx context.Context, id uuid.UUID) (*core.PAVerification, error) {
	var m paVerificationModel
	err := r.exec.SelectOne(&m, "SELECT * FROM pa_verifications WHERE ID = ?", id.String())
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("get PA verification: %v", err)
	}
	pav := m.toDomain()

	rows, err := r.exec.Select(&dataGroupCheckModel{}, "SELECT * FROM data_group_checks WHERE PAVerificationID = ? ORDER BY DGNumber", id.String())
	if err != nil {
		return nil, pkderr.DatabaseErr("get PA verification data groups: %v", err)
	}
	pav.DataGroups = make([]core.DataGroupCheck, 0, len(rows))
	for _, row := range rows {
		if dm, ok := row.(*dataGroupCheckModel); ok {
			pav.DataGroups = append(pav.DataGroups, dm.toDomain())
		}
	}
	return pav, nil
}

func (r *PARepository) List(ctx context.Context, offset, limit int) ([]*core.PAVerification, int, error) {
	var total int
	if err := r.exec.SelectOne(&total, "SELECT COUNT(*) FROM pa_verifications"); err != nil {
		return nil, 0, pkderr.DatabaseErr("list PA verifications count: %v", err)
	}
	if limit <= 0 {
		limit = 50
	}
	query := db.Paginate(r.dialect, "SELECT * FROM pa_verifications ORDER BY CreatedAt DESC", limit, offset)
	rows, err := r.exec.Select(&paVerificationModel{}, query)
	if err != nil {
		return nil, 0, pkderr.DatabaseErr("list PA verifications: %v", err)
	}
	out := make([]*core.PAVerification, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(*paVerificationModel); ok {
			out = append(out, m.toDomain())
		}
	}
	return out, total, nil
}

func (r *PARepository) Statistics(ctx context.Context) (total, valid, invalid, errored int, err error) {
	if err = r.exec.SelectOne(&total, "SELECT COUNT(*) FROM pa_verifications"); err != nil {
		return 0, 0, 0, 0, pkderr.DatabaseErr("PA statistics total: %v", err)
	}
	if err = r.exec.SelectOne(&valid, "SELECT COUNT(*) FROM pa_verifications WHERE Status = ?", string(core.PAValid)); err != nil {
		return 0, 0, 0, 0, pkderr.DatabaseErr("PA statistics valid: %v", err)
	}
	if err = r.exec.SelectOne(&invalid, "SELECT COUNT(*) FROM pa_verifications WHERE Status = ?", string(core.PAInvalid)); err != nil {
		return 0, 0, 0, 0, pkderr.DatabaseErr("PA statistics invalid: %v", err)
	}
	if err = r.exec.SelectOne(&errored, "SELECT COUNT(*) FROM pa_verifications WHERE Status = ?", string(core.PAError)); err != nil {
		return 0, 0, 0, 0, pkderr.DatabaseErr("PA statistics errored: %v", err)
	}
	return total, valid, invalid, errored, nil
}

var _ core.PARepository = (*PARepository)(nil)
