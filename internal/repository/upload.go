package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// UploadRepository implements core.UploadRepository and drives the
// PENDING -> PROCESSING -> {COMPLETED,FAILED} machine of spec.md §4.3.
type UploadRepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewUploadRepository(exec dbReadWriter, dialect db.DialectName) *UploadRepository {
	return &UploadRepository{exec: exec, dialect: dialect}
}

func (r *UploadRepository) Create(ctx context.Context, u *core.Upload) error {
	if u.ID == (uuid.UUID{}) {
		u.ID = core.NewID()
	}
	if u.State == "" {
		u.State = core.UploadPending
	}
	if err := r.exec.Insert(uploadToModel(u)); err != nil {
		return pkderr.DatabaseErr("create upload: %v", err)
	}
	return nil
}

func (r *UploadRepository) FindBySHA256(ctx context.Context, sha string) (*core.Upload, error) {
	var m uploadModel
	err := r.exec.SelectOne(&m, "SELECT * FROM uploads WHERE SHA256 = ?", sha)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("find upload by sha256: %v", err)
	}
	return m.toDomain(), nil
}

func (r *UploadRepository) TransitionToProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.exec.Exec("UPDATE uploads SET State = ? WHERE ID = ? AND State = ?",
		string(core.UploadProcessing), id.String(), string(core.UploadPending))
	if err != nil {
		return pkderr.DatabaseErr("transition upload to processing: %v", err)
	}
	return nil
}

func (r *UploadRepository) UpdateProgress(ctx context.Context, id uuid.UUID, processed int, perKind map[core.Kind]int, perKindDup map[core.Kind]int) error {
	u, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return pkderr.DatabaseErr("update progress: upload %s not found", id)
	}
	u.ProcessedEntries = processed
	u.PerKindCounts = perKind
	u.PerKindDuplicates = perKindDup
	u.UpdatedAt = time.Now()
	if _, err := r.exec.Update(uploadToModel(u)); err != nil {
		return pkderr.DatabaseErr("update progress: %v", err)
	}
	return nil
}

func (r *UploadRepository) Complete(ctx context.Context, id uuid.UUID, total, processed int, perKind map[core.Kind]int, perKindDup map[core.Kind]int, outcome map[core.ValidationStatus]int) error {
	u, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return pkderr.DatabaseErr("complete upload: upload %s not found", id)
	}
	u.State = core.UploadCompleted
	u.TotalEntries = total
	u.ProcessedEntries = processed
	u.PerKindCounts = perKind
	u.PerKindDuplicates = perKindDup
	u.OutcomeCounts = outcome
	u.UpdatedAt = time.Now()
	if _, err := r.exec.Update(uploadToModel(u)); err != nil {
		return pkderr.DatabaseErr("complete upload: %v", err)
	}
	return nil
}

func (r *UploadRepository) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	u, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return pkderr.DatabaseErr("fail upload: upload %s not found", id)
	}
	u.State = core.UploadFailed
	u.ErrorMessage = errMsg
	u.UpdatedAt = time.Now()
	if _, err := r.exec.Update(uploadToModel(u)); err != nil {
		return pkderr.DatabaseErr("fail upload: %v", err)
	}
	return nil
}

func (r *UploadRepository) Get(ctx context.Context, id uuid.UUID) (*core.Upload, error) {
	var m uploadModel
	err := r.exec.SelectOne(&m, "SELECT * FROM uploads WHERE ID = ?", id.String())
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("get upload: %v", err)
	}
	return m.toDomain(), nil
}

func (r *UploadRepository) List(ctx context.Context, offset, limit int) ([]*core.Upload, int, error) {
	var total int
	if err := r.exec.SelectOne(&total, "SELECT COUNT(*) FROM uploads"); err != nil {
		return nil, 0, pkderr.DatabaseErr("list uploads count: %v", err)
	}
	if limit <= 0 {
		limit = 50
	}
	query := db.Paginate(r.dialect, "SELECT * FROM uploads ORDER BY CreatedAt DESC", limit, offset)
	rows, err := r.exec.Select(&uploadModel{}, query)
	if err != nil {
		return nil, 0, pkderr.DatabaseErr("list uploads: %v", err)
	}
	out := make([]*core.Upload, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(*uploadModel); ok {
			out = append(out, m.toDomain())
		}
	}
	return out, total, nil
}

func (r *UploadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.exec.Exec("DELETE FROM uploads WHERE ID = ?", id.String()); err != nil {
		return pkderr.DatabaseErr("delete upload: %v", err)
	}
	return nil
}

var _ core.UploadRepository = (*UploadRepository)(nil)
