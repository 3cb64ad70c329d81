package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/icao-pkd/pkd/internal/pa"
	"github.com/icao-pkd/pkd/internal/pki"
)

// verifyRequest is /pa/verify's JSON body: spec.md §6's "base64 SOD +
// map of DG bytes + optional hints".
type verifyRequest struct {
	SOD            string            `json:"sod"`
	DataGroups     map[string]string `json:"dataGroups"`
	IssuingCountry string            `json:"issuingCountry"`
	DocumentNumber string            `json:"documentNumber"`
}

func decodeDataGroups(in map[string]string) (map[int][]byte, error) {
	out := make(map[int][]byte, len(in))
	for k, v := range in {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, err
		}
		out[n] = raw
	}
	return out, nil
}

// handlePAVerify handles POST /pa/verify: the eight-step pipeline.
func (s *Service) handlePAVerify(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}
	sod, err := base64.StdEncoding.DecodeString(body.SOD)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 sod: "+err.Error(), nil)
		return
	}
	dgs, err := decodeDataGroups(body.DataGroups)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dataGroups: "+err.Error(), nil)
		return
	}

	result, err := s.PA.Verify(ctx, pa.Request{
		SOD: sod, DataGroups: dgs,
		IssuingCountry: body.IssuingCountry, DocumentNumber: body.DocumentNumber,
		ClientIP: clientIP(r), UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.SplitN(fwd, ",", 2)[0]
	}
	return r.RemoteAddr
}

type base64Request struct {
	Data string `json:"data"`
}

func decodeBase64Body(r *http.Request) ([]byte, error) {
	var body base64Request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(body.Data)
}

// handleParseSOD handles POST /pa/parse-sod: a structural preview of a
// SOD (unwrap + CMS parse + LDS security object), without trust-chain
// resolution or signature verification.
func (s *Service) handleParseSOD(_ context.Context, w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBase64Body(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 data: "+err.Error(), nil)
		return
	}
	cmsBytes, err := pki.UnwrapICAOSOD(raw)
	if err != nil {
		writeErr(w, err)
		return
	}
	cms, err := pki.ParseCMSSignedData(cmsBytes)
	if err != nil {
		writeErr(w, err)
		return
	}
	lds, err := pki.ParseLDSSecurityObject(cms.EncapsulatedContent)
	if err != nil {
		writeErr(w, err)
		return
	}
	var signerSubject string
	if cms.SignerCertificate != nil {
		signerSubject = cms.SignerCertificate.Subject.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signerSubjectDN": signerSubject,
		"ldsVersion":      lds.Version,
		"dataGroupHashes": lds.DataGroupHashes,
		"digestAlgorithm": lds.HashAlgorithmOID.String(),
	})
}

// handleParseDG1 handles POST /pa/parse-dg1.
func (s *Service) handleParseDG1(_ context.Context, w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBase64Body(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 data: "+err.Error(), nil)
		return
	}
	mrz, err := pki.ParseDG1(raw)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mrz)
}

// handleParseDG2 handles POST /pa/parse-dg2.
func (s *Service) handleParseDG2(_ context.Context, w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBase64Body(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 data: "+err.Error(), nil)
		return
	}
	img, err := pki.ParseDG2(raw)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"format": img.Format,
		"image":  base64.StdEncoding.EncodeToString(img.ImageBytes),
	})
}

type mrzTextRequest struct {
	Text string `json:"text"`
}

// handleParseMRZText handles POST /pa/parse-mrz-text.
func (s *Service) handleParseMRZText(_ context.Context, w http.ResponseWriter, r *http.Request) {
	var body mrzTextRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}
	mrz, err := pki.ParseMRZText(body.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mrz)
}

// handlePAHistory handles GET /pa/history.
func (s *Service) handlePAHistory(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	runs, total, err := s.PAs.List(ctx, offset, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"verifications": runs, "total": total})
}

// handlePAStatistics handles GET /pa/statistics.
func (s *Service) handlePAStatistics(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	total, valid, invalid, errored, err := s.PAs.Statistics(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": total, "valid": valid, "invalid": invalid, "error": errored,
	})
}

// handlePAGetOrDataGroups handles GET /pa/{id} and GET
// /pa/{id}/datagroups; DataGroupCheck rows are embedded directly on
// PAVerification, so both paths read through the same repository call.
func (s *Service) handlePAGetOrDataGroups(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	rest := pathSuffix("/pa/", r.URL.Path)
	rawID := strings.TrimSuffix(rest, "/datagroups")
	id, ok := parseUUID(w, rawID)
	if !ok {
		return
	}
	result, err := s.PAs.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "PA verification not found", nil)
		return
	}
	if strings.HasSuffix(rest, "/datagroups") {
		writeJSON(w, http.StatusOK, result.DataGroups)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
