package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/parser"
)

// readUploadBody accepts either a multipart/form-data body with a
// "file" part (the common browser-upload shape) or a raw request body
// (a direct PUT-style client), mirroring how the teacher's CSR/cert
// payload handlers tolerate more than one encoding of "the bytes".
func readUploadBody(r *http.Request) (filename string, data []byte, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			return "", nil, ferr
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		return header.Filename, data, err
	}
	data, err = io.ReadAll(r.Body)
	return r.URL.Query().Get("filename"), data, err
}

func processingMode(r *http.Request) core.ProcessingMode {
	if strings.EqualFold(r.URL.Query().Get("mode"), "manual") {
		return core.ModeManual
	}
	return core.ModeAuto
}

func pathSuffix(pattern, path string) string {
	return strings.TrimPrefix(path, pattern)
}

func parseUUID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id: "+raw, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (s *Service) ingest(ctx context.Context, w http.ResponseWriter, r *http.Request, kindHint core.Kind) {
	filename, data, err := readUploadBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload body: "+err.Error(), nil)
		return
	}
	upload, err := s.Pipeline.Ingest(ctx, filename, data, processingMode(r), kindHint)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, upload)
}

// handleUploadLDIF handles POST /upload/ldif.
func (s *Service) handleUploadLDIF(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	s.ingest(ctx, w, r, "")
}

// handleUploadMasterList handles POST /upload/masterlist.
func (s *Service) handleUploadMasterList(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	s.ingest(ctx, w, r, "")
}

// handleUploadCertificate handles POST /upload/certificate. A single
// file may be a certificate, CRL, deviation list or P7B bundle;
// spec.md §6 names no explicit kind field, so an optional "kind" query
// parameter is accepted and passed through as a hint.
func (s *Service) handleUploadCertificate(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	s.ingest(ctx, w, r, core.Kind(r.URL.Query().Get("kind")))
}

// handleUploadCertificatePreview handles POST /upload/certificate/preview:
// parses the uploaded container and reports its contents without
// persisting anything.
func (s *Service) handleUploadCertificatePreview(_ context.Context, w http.ResponseWriter, r *http.Request) {
	filename, data, err := readUploadBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload body: "+err.Error(), nil)
		return
	}
	result, err := parser.Preview(filename, data, core.Kind(r.URL.Query().Get("kind")))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func paginationParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	return offset, limit
}

// handleUploadHistory handles GET /upload/history.
func (s *Service) handleUploadHistory(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r)
	uploads, total, err := s.Uploads.List(ctx, offset, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"uploads": uploads, "total": total})
}

// handleUploadDetail handles GET /upload/detail/{id}.
func (s *Service) handleUploadDetail(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, pathSuffix("/upload/detail/", r.URL.Path))
	if !ok {
		return
	}
	upload, err := s.Uploads.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if upload == nil {
		writeError(w, http.StatusNotFound, "upload not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

// handleUploadDelete handles DELETE /upload/{id}: cascade remove.
func (s *Service) handleUploadDelete(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, pathSuffix("/upload/", r.URL.Path))
	if !ok {
		return
	}
	deleted, err := s.Certs.DeleteByUpload(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.Uploads.Delete(ctx, id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deletedCertificates": deleted})
}

// handleProgressStream handles GET /progress/{id}: a server-sent-events
// stream of ProgressEvents, one producer (the Pipeline) fanned out to
// many consumers via the Broker, per spec.md §6/§5's streaming model.
func (s *Service) handleProgressStream(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, pathSuffix("/progress/", r.URL.Path))
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	upload, err := s.Uploads.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if upload == nil {
		writeError(w, http.StatusNotFound, "upload not found", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, flusher, currentSnapshotEvent(upload))
	if upload.State == core.UploadCompleted || upload.State == core.UploadFailed {
		return
	}

	events, unsubscribe := s.Broker.Subscribe(id)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			writeSSE(w, flusher, ev)
			if ev.Type == parser.EventCompleted || ev.Type == parser.EventFailed {
				return
			}
		}
	}
}

func currentSnapshotEvent(upload *core.Upload) parser.ProgressEvent {
	t := parser.EventProcessing
	switch upload.State {
	case core.UploadPending:
		t = parser.EventStarted
	case core.UploadCompleted:
		t = parser.EventCompleted
	case core.UploadFailed:
		t = parser.EventFailed
	}
	return parser.ProgressEvent{
		UploadID: upload.ID, Type: t,
		ProcessedEntries: upload.ProcessedEntries, TotalEntries: upload.TotalEntries,
		Message: upload.ErrorMessage,
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev parser.ProgressEvent) {
	fmt.Fprintf(w, "event: %s\ndata: {\"uploadId\":%q,\"processedEntries\":%d,\"totalEntries\":%d}\n\n",
		ev.Type, ev.UploadID, ev.ProcessedEntries, ev.TotalEntries)
	flusher.Flush()
}
