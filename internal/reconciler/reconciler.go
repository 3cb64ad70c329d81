// Package reconciler implements the Two-Store Reconciler (spec.md
// §4.6): a driver loop that pushes rows the database has already
// accepted but the directory hasn't seen yet, modelled on the
// teacher's `ra` registration-authority orchestration style of
// stepping through a batch and recording a per-item outcome rather
// than failing the whole run on one bad item.
package reconciler

import (
	"context"
	"sync"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// defaultBatchSize is spec.md §4.6's "batch size configurable, default
// 100".
const defaultBatchSize = 100

// reconciledKinds are the certificate kinds the reconciler pushes to
// the directory. DSC_NC is explicitly out of scope (deprecated);
// LC and MLSC are not named by spec.md §4.6's algorithm and are not
// pushed here; no other code path writes them to the directory either.
var reconciledKinds = []core.Kind{core.KindCSCA, core.KindDSC}

// Reconciler drives one divergence-repair pass at a time; concurrent
// runs are serialised by mu, matching spec.md §5's "a mutex prevents
// two concurrent runs" requirement.
type Reconciler struct {
	certs core.CertificateRepository
	crls  core.CRLRepository
	runs  core.ReconciliationRepository
	dir   core.DirectoryAdapter
	clock clock.Clock
	log   log.Logger

	batchSize int

	mu sync.Mutex
}

// New builds a Reconciler with the default batch size and a real-time
// clock.
func New(certs core.CertificateRepository, crls core.CRLRepository, runs core.ReconciliationRepository, dir core.DirectoryAdapter, logger log.Logger) *Reconciler {
	return &Reconciler{
		certs:     certs,
		crls:      crls,
		runs:      runs,
		dir:       dir,
		clock:     clock.New(),
		log:       logger,
		batchSize: defaultBatchSize,
	}
}

// WithClock overrides the Reconciler's clock; used by tests.
func (r *Reconciler) WithClock(c clock.Clock) *Reconciler {
	r.clock = c
	return r
}

// WithBatchSize overrides the per-kind candidate batch size.
func (r *Reconciler) WithBatchSize(n int) *Reconciler {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// Run executes one reconciliation pass. A second call while one is
// already in progress returns an AlreadyRunning error without
// blocking, per spec.md §5.
func (r *Reconciler) Run(ctx context.Context, trigger core.ReconTrigger, dryRun bool) (*core.ReconciliationRun, error) {
	if !r.mu.TryLock() {
		return nil, pkderr.AlreadyRunningErr("a reconciliation run is already in progress")
	}
	defer r.mu.Unlock()

	run := &core.ReconciliationRun{
		ID:            core.NewID(),
		Trigger:       trigger,
		DryRun:        dryRun,
		State:         core.ReconInProgress,
		StartedAt:     r.clock.Now(),
		PerKindAdded:  map[core.Kind]int{},
		PerKindFailed: map[core.Kind]int{},
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	for _, kind := range reconciledKinds {
		r.reconcileCertificateKind(ctx, run, kind, dryRun)
	}
	r.reconcileCRLs(ctx, run, dryRun)

	run.CompletedAt = r.clock.Now()
	switch {
	case run.FailedCount == 0:
		run.State = core.ReconSuccess
	case run.SuccessCount == 0:
		run.State = core.ReconFailed
	default:
		run.State = core.ReconPartial
	}
	if err := r.runs.CompleteRun(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// reconcileCertificateKind pushes one kind's WHERE directory_stored =
// false candidates (spec.md §4.6 steps 2-3).
func (r *Reconciler) reconcileCertificateKind(ctx context.Context, run *core.ReconciliationRun, kind core.Kind, dryRun bool) {
	candidates, err := r.certs.ListPendingDirectoryWrites(ctx, kind, r.batchSize)
	if err != nil {
		r.log.Err("reconciler: list pending " + string(kind) + ": " + err.Error())
		return
	}
	for _, cert := range candidates {
		start := r.clock.Now()
		err := r.pushCertificate(ctx, cert, dryRun)
		duration := r.clock.Now().Sub(start)
		entry := core.ReconciliationLogEntry{
			RunID:       run.ID,
			Fingerprint: cert.Fingerprint,
			Kind:        cert.Kind,
			Country:     cert.Country,
			Action:      "ADD",
			DurationMS:  duration.Milliseconds(),
			CreatedAt:   r.clock.Now(),
		}
		if err != nil {
			entry.Outcome = "FAILED"
			entry.ErrorMsg = err.Error()
			run.FailedCount++
			run.PerKindFailed[kind]++
		} else {
			entry.Outcome = "SUCCESS"
			run.SuccessCount++
			run.PerKindAdded[kind]++
		}
		if logErr := r.runs.AppendLogEntry(ctx, &entry); logErr != nil {
			r.log.Err("reconciler: append log entry: " + logErr.Error())
		}
	}
}

// pushCertificate implements spec.md §4.6 step 3 for a single
// certificate: ensure the parent path, write the entry, mark stored.
func (r *Reconciler) pushCertificate(ctx context.Context, cert *core.Certificate, dryRun bool) error {
	if err := r.dir.EnsureCountry(ctx, cert.Country); err != nil {
		return err
	}
	if err := r.dir.EnsureOrganisationalUnit(ctx, cert.Kind, cert.Country); err != nil {
		return err
	}
	if err := r.dir.UpsertCertificate(ctx, cert); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	return r.certs.MarkDirectoryStored(ctx, cert.ID, true)
}

// reconcileCRLs is the CRL leg of spec.md §4.6 step 2's `{CSCA, DSC,
// CRL}` kind set.
func (r *Reconciler) reconcileCRLs(ctx context.Context, run *core.ReconciliationRun, dryRun bool) {
	candidates, err := r.crls.ListPendingDirectoryWrites(ctx, r.batchSize)
	if err != nil {
		r.log.Err("reconciler: list pending CRLs: " + err.Error())
		return
	}
	const pseudoKind = core.Kind("CRL")
	for _, crl := range candidates {
		start := r.clock.Now()
		err := r.pushCRL(ctx, crl, dryRun)
		duration := r.clock.Now().Sub(start)
		entry := core.ReconciliationLogEntry{
			RunID:       run.ID,
			Fingerprint: crl.Fingerprint,
			Kind:        pseudoKind,
			Country:     crl.Country,
			Action:      "ADD",
			DurationMS:  duration.Milliseconds(),
			CreatedAt:   r.clock.Now(),
		}
		if err != nil {
			entry.Outcome = "FAILED"
			entry.ErrorMsg = err.Error()
			run.FailedCount++
			run.PerKindFailed[pseudoKind]++
		} else {
			entry.Outcome = "SUCCESS"
			run.SuccessCount++
			run.PerKindAdded[pseudoKind]++
		}
		if logErr := r.runs.AppendLogEntry(ctx, &entry); logErr != nil {
			r.log.Err("reconciler: append log entry: " + logErr.Error())
		}
	}
}

func (r *Reconciler) pushCRL(ctx context.Context, crl *core.CRL, dryRun bool) error {
	if err := r.dir.EnsureCountry(ctx, crl.Country); err != nil {
		return err
	}
	if err := r.dir.UpsertCRL(ctx, crl); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	return r.crls.MarkDirectoryStored(ctx, crl.ID, true)
}

// CheckStatus measures divergence between the two stores without
// repairing it (spec.md §4.6's SyncStatusSnapshot and the `/sync/check`
// endpoint).
func (r *Reconciler) CheckStatus(ctx context.Context) (*core.SyncStatusSnapshot, error) {
	start := r.clock.Now()
	snap := &core.SyncStatusSnapshot{
		ID:              core.NewID(),
		MeasuredAt:      start,
		PerKindDBCount:  map[core.Kind]int{},
		PerKindDirCount: map[core.Kind]int{},
		PerKindDiscrep:  map[core.Kind]int{},
		PerCountryDB:    map[string]map[core.Kind]int{},
		PerCountryDir:   map[string]map[core.Kind]int{},
	}

	countries, err := r.certs.Countries(ctx)
	if err != nil {
		snap.OverallStatus = core.SyncError
		return snap, err
	}

	overallDiscrepancy := false
	for _, kind := range append(append([]core.Kind{}, reconciledKinds...), core.KindLC, core.KindMLSC) {
		dbCount, err := r.certs.CountByKind(ctx, kind)
		if err != nil {
			snap.OverallStatus = core.SyncError
			return snap, err
		}
		snap.PerKindDBCount[kind] = dbCount

		dirTotal := 0
		for _, country := range countries {
			dirCount, err := r.dir.CountByKind(ctx, kind, country)
			if err != nil {
				snap.OverallStatus = core.SyncError
				return snap, err
			}
			dirTotal += dirCount
			if snap.PerCountryDir[country] == nil {
				snap.PerCountryDir[country] = map[core.Kind]int{}
			}
			snap.PerCountryDir[country][kind] = dirCount
		}
		snap.PerKindDirCount[kind] = dirTotal
		discrepancy := dbCount - dirTotal
		snap.PerKindDiscrep[kind] = discrepancy
		if discrepancy != 0 {
			overallDiscrepancy = true
		}
	}

	if overallDiscrepancy {
		snap.OverallStatus = core.SyncDiscrepancy
	} else {
		snap.OverallStatus = core.SyncSynced
	}
	snap.CheckDurationMS = r.clock.Now().Sub(start).Milliseconds()

	if err := r.runs.SaveSnapshot(ctx, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// RevalidationSweep re-evaluates validity-window verdicts for every
// stored ValidationResult against current time (spec.md §4.6's daily
// revalidation sweep), transitioning rows that newly crossed the
// expiry boundary in either direction.
type RevalidationSummary struct {
	TotalProcessed int
	NewlyExpired   int
	NewlyValid     int
	Unchanged      int
	Errors         int
	DurationMS     int64
}

func (r *Reconciler) RevalidationSweep(ctx context.Context, validations core.ValidationRepository) (*RevalidationSummary, error) {
	start := r.clock.Now()
	summary := &RevalidationSummary{}

	results, err := validations.ListWithExpiry(ctx)
	if err != nil {
		return summary, err
	}
	now := r.clock.Now()
	for _, vr := range results {
		summary.TotalProcessed++
		cert, err := r.certs.Get(ctx, vr.CertificateID)
		if err != nil || cert == nil {
			summary.Errors++
			continue
		}
		currentlyExpired := now.After(cert.NotAfter)
		wasExpired := vr.CurrentlyExpired

		newStatus := vr.Status
		switch {
		case currentlyExpired && vr.Status == core.StatusValid:
			newStatus = core.StatusExpiredValid
		case !currentlyExpired && vr.Status == core.StatusExpiredValid:
			newStatus = core.StatusValid
		}

		if err := validations.UpdateValidityPeriod(ctx, vr.ID, !now.Before(cert.NotBefore), currentlyExpired, newStatus); err != nil {
			summary.Errors++
			continue
		}

		switch {
		case currentlyExpired && !wasExpired:
			summary.NewlyExpired++
		case !currentlyExpired && wasExpired:
			summary.NewlyValid++
		default:
			summary.Unchanged++
		}
	}
	summary.DurationMS = r.clock.Now().Sub(start).Milliseconds()
	return summary, nil
}
