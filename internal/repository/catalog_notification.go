package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// CatalogNotificationRepository implements core.CatalogNotificationRepository.
type CatalogNotificationRepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewCatalogNotificationRepository(exec dbReadWriter, dialect db.DialectName) *CatalogNotificationRepository {
	return &CatalogNotificationRepository{exec: exec, dialect: dialect}
}

func (r *CatalogNotificationRepository) Create(ctx context.Context, n *core.CatalogNotification) error {
	if n.ID == (uuid.UUID{}) {
		n.ID = core.NewID()
	}
	if err := r.exec.Insert(catalogNotificationToModel(n)); err != nil {
		return pkderr.DatabaseErr("create catalog notification: %v", err)
	}
	return nil
}

func (r *CatalogNotificationRepository) Latest(ctx context.Context) (*core.CatalogNotification, error) {
	var m catalogNotificationModel
	query := db.Paginate(r.dialect, "SELECT * FROM catalog_notifications ORDER BY ObservedAt DESC", 1, 0)
	err := r.exec.SelectOne(&m, query)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("latest catalog notification: %v", err)
	}
	return m.toDomain(), nil
}

func (r *CatalogNotificationRepository) List(ctx context.Context, offset, limit int) ([]*core.CatalogNotification, int, error) {
	var total int
	if err := r.exec.SelectOne(&total, "SELECT COUNT(*) FROM catalog_notifications"); err != nil {
		return nil, 0, pkderr.DatabaseErr("list catalog notifications count: %v", err)
	}
	if limit <= 0 {
		limit = 50
	}
	query := db.Paginate(r.dialect, "SELECT * FROM catalog_notifications ORDER BY ObservedAt DESC", limit, offset)
	rows, err := r.exec.Select(&catalogNotificationModel{}, query)
	if err != nil {
		return nil, 0, pkderr.DatabaseErr("list catalog notifications: %v", err)
	}
	out := make([]*core.CatalogNotification, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(*catalogNotificationModel); ok {
			out = append(out, m.toDomain())
		}
	}
	return out, total, nil
}

var _ core.CatalogNotificationRepository = (*CatalogNotificationRepository)(nil)
