package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// MasterListRepository implements core.MasterListRepository.
type MasterListRepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewMasterListRepository(exec dbReadWriter, dialect db.DialectName) *MasterListRepository {
	return &MasterListRepository{exec: exec, dialect: dialect}
}

func (r *MasterListRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*core.MasterList, error) {
	var m masterListModel
	err := r.exec.SelectOne(&m, "SELECT * FROM master_lists WHERE Fingerprint = ?", fingerprint)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("find master list by fingerprint: %v", err)
	}
	return m.toDomain(), nil
}

func (r *MasterListRepository) Insert(ctx context.Context, ml *core.MasterList) error {
	if ml.ID == (uuid.UUID{}) {
		ml.ID = core.NewID()
	}
	if err := r.exec.Insert(masterListToModel(ml)); err != nil {
		return pkderr.DatabaseErr("insert master list: %v", err)
	}
	return nil
}

func (r *MasterListRepository) MarkDirectoryStored(ctx context.Context, id uuid.UUID, stored bool) error {
	_, err := r.exec.Exec("UPDATE master_lists SET DirectoryStored = ? WHERE ID = ?", boolLiteral(r.dialect, stored), id.String())
	if err != nil {
		return pkderr.DatabaseErr("mark master list directory stored: %v", err)
	}
	return nil
}

var _ core.MasterListRepository = (*MasterListRepository)(nil)
