package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/icao-pkd/pkd/internal/core"
)

// handleSyncStatus handles GET /sync/status: the latest divergence
// snapshot without re-measuring.
func (s *Service) handleSyncStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	snap, err := s.Runs.LatestSnapshot(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": core.SyncUnknown})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSyncStats handles GET /sync/stats: recent reconciliation run
// history as a stats feed.
func (s *Service) handleSyncStats(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	runs, total, err := s.Runs.ListRuns(ctx, offset, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "total": total})
}

// handleSyncCheck handles POST /sync/check: measure divergence only,
// no repair.
func (s *Service) handleSyncCheck(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	snap, err := s.Reconciler.CheckStatus(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type reconcileRequest struct {
	DryRun bool `json:"dryRun"`
}

// handleSyncReconcile handles POST /sync/reconcile: measure + repair.
func (s *Service) handleSyncReconcile(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var body reconcileRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
			return
		}
	}
	run, err := s.Reconciler.Run(ctx, core.TriggerManual, body.DryRun)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleSyncReconcileHistory handles GET /sync/reconcile/history.
func (s *Service) handleSyncReconcileHistory(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	runs, total, err := s.Runs.ListRuns(ctx, offset, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "total": total})
}

// handleSyncReconcileGet handles GET /sync/reconcile/{id}.
func (s *Service) handleSyncReconcileGet(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, pathSuffix("/sync/reconcile/", r.URL.Path))
	if !ok {
		return
	}
	run, err := s.Runs.GetRun(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "reconciliation run not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
