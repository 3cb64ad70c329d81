package api

import (
	"archive/zip"
	"context"
	"encoding/pem"
	"fmt"
	"net/http"

	"github.com/icao-pkd/pkd/internal/core"
)

// handleCertificateSearch handles GET /certificates/search.
func (s *Service) handleCertificateSearch(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	q := r.URL.Query()
	filter := core.CertificateFilter{
		Country:  q.Get("country"),
		Kind:     core.Kind(q.Get("kind")),
		Status:   core.ValidationStatus(q.Get("status")),
		Source:   q.Get("source"),
		FreeText: q.Get("q"),
		Offset:   offset,
		Limit:    limit,
	}
	certs, total, err := s.Certs.Search(ctx, filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"certificates": certs, "total": total})
}

// handleCertificateCountries handles GET /certificates/countries.
func (s *Service) handleCertificateCountries(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	countries, err := s.Certs.Countries(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"countries": countries})
}

// handleCertificateExport handles GET /certificates/export/{format}: a
// single certificate, identified by the "id" query parameter, encoded
// as PEM or DER.
func (s *Service) handleCertificateExport(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	format := pathSuffix("/certificates/export/", r.URL.Path)
	id, ok := parseUUID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	cert, err := s.Certs.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if cert == nil {
		writeError(w, http.StatusNotFound, "certificate not found", nil)
		return
	}
	switch format {
	case "der":
		w.Header().Set("Content-Type", "application/pkix-cert")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.der", cert.Fingerprint))
		_, _ = w.Write(cert.DER)
	case "pem":
		w.Header().Set("Content-Type", "application/x-pem-file")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pem", cert.Fingerprint))
		_ = pem.Encode(w, &pem.Block{Type: "CERTIFICATE", Bytes: cert.DER})
	default:
		writeError(w, http.StatusBadRequest, "unsupported export format "+format, nil)
	}
}

// handleCertificateExportAll handles GET /certificates/export/all: a
// ZIP mirroring the directory's data/{country}/{kind}/ layout, each
// entry the certificate's DER bytes named by fingerprint.
func (s *Service) handleCertificateExportAll(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	countries, err := s.Certs.Countries(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=pkd-export.zip")
	zw := zip.NewWriter(w)
	defer zw.Close()

	kinds := []core.Kind{core.KindCSCA, core.KindMLSC, core.KindDSC, core.KindDSCNC, core.KindLC}
	for _, country := range countries {
		for _, kind := range kinds {
			certs, _, err := s.Certs.Search(ctx, core.CertificateFilter{Country: country, Kind: kind, Limit: 1 << 20})
			if err != nil {
				continue
			}
			for _, cert := range certs {
				entry, err := zw.Create(fmt.Sprintf("data/%s/%s/%s.der", country, kind, cert.Fingerprint))
				if err != nil {
					continue
				}
				_, _ = entry.Write(cert.DER)
			}
		}
	}
}
