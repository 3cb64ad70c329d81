// Package api provides the thin HTTP handler layer spec.md §6 names:
// one handler per endpoint, marshalling/unmarshalling the JSON
// envelope spec.md §7 describes and calling straight into the parser,
// repository, trustchain, reconciler and pa packages. It carries no
// routing framework, auth/RBAC, or reverse-proxy logic (all named
// Non-goals) — it exists only so the core's operations are reachable
// the way spec.md §6 lists them, grounded on the teacher's wfe2
// package: a struct holding the service's collaborators, a HandleFunc
// wrapper that applies uniform per-request logging and method
// filtering, and writeJSON/sendError response helpers standing in for
// wfe2's writeJsonResponse/sendError.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
	"github.com/icao-pkd/pkd/internal/parser"
	"github.com/icao-pkd/pkd/internal/pa"
	"github.com/icao-pkd/pkd/internal/reconciler"
)

// Service holds every collaborator a handler may call into. It is the
// api package's equivalent of wfe2.WebFrontEndImpl: one struct per
// server process, with no per-request state.
type Service struct {
	Pipeline    *parser.Pipeline
	Broker      *parser.Broker
	Certs       core.CertificateRepository
	CRLs        core.CRLRepository
	MasterLists core.MasterListRepository
	Uploads     core.UploadRepository
	Validations core.ValidationRepository
	PA          *pa.Verifier
	PAs         core.PARepository
	Reconciler  *reconciler.Reconciler
	Runs        core.ReconciliationRepository

	clock clock.Clock
	log   log.Logger
}

// New builds a Service over the given collaborators.
func New(
	pipeline *parser.Pipeline,
	broker *parser.Broker,
	certs core.CertificateRepository,
	crls core.CRLRepository,
	masterLists core.MasterListRepository,
	uploads core.UploadRepository,
	validations core.ValidationRepository,
	verifier *pa.Verifier,
	pas core.PARepository,
	recon *reconciler.Reconciler,
	runs core.ReconciliationRepository,
	logger log.Logger,
) *Service {
	return &Service{
		Pipeline: pipeline, Broker: broker, Certs: certs, CRLs: crls,
		MasterLists: masterLists, Uploads: uploads, Validations: validations,
		PA: verifier, PAs: pas, Reconciler: recon, Runs: runs,
		clock: clock.New(), log: logger,
	}
}

// WithClock overrides the Service's clock; used by tests.
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

// apiHandlerFunc is the signature every endpoint method implements,
// mirroring wfe2's wfeHandlerFunc.
type apiHandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request)

// requestTimeout bounds how long any single handler may run, the same
// role wfe2.WebFrontEndImpl.RequestTimeout plays (default 5 minutes
// there; shorter here since nothing in this API streams a multi-minute
// upload synchronously — ingestion itself runs async via Pipeline.Ingest).
const requestTimeout = 30 * time.Second

// HandleFunc registers h at pattern for the given HTTP methods,
// wrapping it with uniform logging, a request timeout, and a 405 for
// disallowed methods. It is the api package's equivalent of wfe2's
// WebFrontEndImpl.HandleFunc, simplified: no nonce, no CORS, no ACME
// problem-document vocabulary, since this API is a plain internal JSON
// surface rather than ACME's client protocol.
func (s *Service) HandleFunc(mux *http.ServeMux, pattern string, h apiHandlerFunc, methods ...string) {
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[m] = true
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if !allowed[r.Method] {
			w.Header().Set("Allow", methodsList(methods))
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		start := s.clock.Now()
		h(ctx, w, r)
		s.log.Debug(r.Method + " " + r.URL.Path + " " + s.clock.Now().Sub(start).String())
	})
}

func methodsList(methods []string) string {
	out := ""
	for i, m := range methods {
		if i > 0 {
			out += ", "
		}
		out += m
	}
	return out
}

// Handler builds the full http.Handler covering every spec.md §6
// endpoint.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	s.HandleFunc(mux, "/upload/ldif", s.handleUploadLDIF, "POST")
	s.HandleFunc(mux, "/upload/masterlist", s.handleUploadMasterList, "POST")
	s.HandleFunc(mux, "/upload/certificate", s.handleUploadCertificate, "POST")
	s.HandleFunc(mux, "/upload/certificate/preview", s.handleUploadCertificatePreview, "POST")
	s.HandleFunc(mux, "/upload/history", s.handleUploadHistory, "GET")
	s.HandleFunc(mux, "/upload/detail/", s.handleUploadDetail, "GET")
	s.HandleFunc(mux, "/upload/", s.handleUploadDelete, "DELETE")
	s.HandleFunc(mux, "/progress/", s.handleProgressStream, "GET")

	s.HandleFunc(mux, "/certificates/search", s.handleCertificateSearch, "GET")
	s.HandleFunc(mux, "/certificates/countries", s.handleCertificateCountries, "GET")
	s.HandleFunc(mux, "/certificates/export/all", s.handleCertificateExportAll, "GET")
	s.HandleFunc(mux, "/certificates/export/", s.handleCertificateExport, "GET")

	s.HandleFunc(mux, "/pa/verify", s.handlePAVerify, "POST")
	s.HandleFunc(mux, "/pa/parse-sod", s.handleParseSOD, "POST")
	s.HandleFunc(mux, "/pa/parse-dg1", s.handleParseDG1, "POST")
	s.HandleFunc(mux, "/pa/parse-dg2", s.handleParseDG2, "POST")
	s.HandleFunc(mux, "/pa/parse-mrz-text", s.handleParseMRZText, "POST")
	s.HandleFunc(mux, "/pa/history", s.handlePAHistory, "GET")
	s.HandleFunc(mux, "/pa/statistics", s.handlePAStatistics, "GET")
	s.HandleFunc(mux, "/pa/", s.handlePAGetOrDataGroups, "GET")

	s.HandleFunc(mux, "/sync/status", s.handleSyncStatus, "GET")
	s.HandleFunc(mux, "/sync/stats", s.handleSyncStats, "GET")
	s.HandleFunc(mux, "/sync/check", s.handleSyncCheck, "POST")
	s.HandleFunc(mux, "/sync/reconcile/history", s.handleSyncReconcileHistory, "GET")
	s.HandleFunc(mux, "/sync/reconcile", s.handleSyncReconcile, "POST")
	s.HandleFunc(mux, "/sync/reconcile/", s.handleSyncReconcileGet, "GET")

	return mux
}
