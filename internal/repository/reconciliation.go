package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// ReconciliationRepository implements core.ReconciliationRepository.
type ReconciliationRepository struct {
	exec    dbReadWriter
	dialect db.DialectName
}

func NewReconciliationRepository(exec dbReadWriter, dialect db.DialectName) *ReconciliationRepository {
	return &ReconciliationRepository{exec: exec, dialect: dialect}
}

func (r *ReconciliationRepository) CreateRun(ctx context.Context, run *core.ReconciliationRun) error {
	if run.ID == (uuid.UUID{}) {
		run.ID = core.NewID()
	}
	if err := r.exec.Insert(reconciliationRunToModel(run)); err != nil {
		return pkderr.DatabaseErr("create reconciliation run: %v", err)
	}
	return nil
}

func (r *ReconciliationRepository) AppendLogEntry(ctx context.Context, entry *core.ReconciliationLogEntry) error {
	if entry.ID == (uuid.UUID{}) {
		entry.ID = core.NewID()
	}
	if err := r.exec.Insert(reconciliationLogEntryToModel(entry)); err != nil {
		return pkderr.DatabaseErr("append reconciliation log entry: %v", err)
	}
	return nil
}

func (r *ReconciliationRepository) CompleteRun(ctx context.Context, run *core.ReconciliationRun) error {
	if _, err := r.exec.Update(reconciliationRunToModel(run)); err != nil {
		return pkderr.DatabaseErr("complete reconciliation run: %v", err)
	}
	return nil
}

func (r *ReconciliationRepository) GetRun(ctx context.Context, id uuid.UUID) (*core.ReconciliationRun, error) {
	var m reconciliationRunModel
	err := r.exec.SelectOne(&m, "SELECT * FROM reconciliation_runs WHERE ID = ?", id.String())
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("get reconciliation run: %v", err)
	}
	run := m.toDomain()

	rows, err := r.exec.Select(&reconciliationLogEntryModel{}, "SELECT * FROM reconciliation_log_entries WHERE RunID = ? ORDER BY CreatedAt", id.String())
	if err != nil {
		return nil, pkderr.DatabaseErr("get reconciliation run log entries: %v", err)
	}
	run.Entries = make([]core.ReconciliationLogEntry, 0, len(rows))
	for _, row := range rows {
		if em, ok := row.(*reconciliationLogEntryModel); ok {
			run.Entries = append(run.Entries, em.toDomain())
		}
	}
	return run, nil
}

func (r *ReconciliationRepository) ListRuns(ctx context.Context, offset, limit int) ([]*core.ReconciliationRun, int, error) {
	var total int
	if err := r.exec.SelectOne(&total, "SELECT COUNT(*) FROM reconciliation_runs"); err != nil {
		return nil, 0, pkderr.DatabaseErr("list reconciliation runs count: %v", err)
	}
	if limit <= 0 {
		limit = 50
	}
	query := db.Paginate(r.dialect, "SELECT * FROM reconciliation_runs ORDER BY StartedAt DESC", limit, offset)
	rows, err := r.exec.Select(&reconciliationRunModel{}, query)
	if err != nil {
		return nil, 0, pkderr.DatabaseErr("list reconciliation runs: %v", err)
	}
	out := make([]*core.ReconciliationRun, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(*reconciliationRunModel); ok {
			out = append(out, m.toDomain())
		}
	}
	return out, total, nil
}

func (r *ReconciliationRepository) SaveSnapshot(ctx context.Context, snap *core.SyncStatusSnapshot) error {
	if snap.ID == (uuid.UUID{}) {
		snap.ID = core.NewID()
	}
	if err := r.exec.Insert(syncStatusSnapshotToModel(snap)); err != nil {
		return pkderr.DatabaseErr("save sync status snapshot: %v", err)
	}
	return nil
}

func (r *ReconciliationRepository) LatestSnapshot(ctx context.Context) (*core.SyncStatusSnapshot, error) {
	query := db.Paginate(r.dialect, "SELECT * FROM sync_status_snapshots ORDER BY MeasuredAt DESC", 1, 0)
	var m syncStatusSnapshotModel
	err := r.exec.SelectOne(&m, query)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, pkderr.DatabaseErr("latest sync status snapshot: %v", err)
	}
	return m.toDomain(), nil
}

var _ core.ReconciliationRepository = (*ReconciliationRepository)(nil)
