package api

import (
	"encoding/json"
	"net/http"

	"github.com/icao-pkd/pkd/internal/pkderr"
)

// envelope is spec.md §7's "every response is a structured JSON
// envelope with status, optional data, and a reason list".
type envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Reasons []string    `json:"reasons,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: "ok", Data: data})
}

// writeError writes a failure envelope. reasons, when nil, defaults to
// a single-element list built from msg.
func writeError(w http.ResponseWriter, status int, msg string, reasons []string) {
	if len(reasons) == 0 {
		reasons = []string{msg}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: "error", Reasons: reasons})
}

// writeErr maps an error (typically a *pkderr.Error) to its HTTP
// status and writes the corresponding failure envelope. Resource
// errors abort the request with a 5xx (spec.md §7's propagation
// policy); conflicts map to 409; everything else not otherwise
// classified is a 400, since by the time a handler calls writeErr the
// request itself, not a downstream verdict, has failed.
func writeErr(w http.ResponseWriter, err error) {
	pe, ok := err.(*pkderr.Error)
	if !ok {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	switch pe.Kind {
	case pkderr.DuplicateFile, pkderr.AlreadyRunning:
		writeError(w, http.StatusConflict, pe.Error(), []string{pe.Kind.String()})
	case pkderr.PoolExhausted, pkderr.DatabaseError, pkderr.DirectoryError, pkderr.Timeout:
		writeError(w, http.StatusInternalServerError, pe.Error(), []string{pe.Kind.String()})
	case pkderr.Unauthorised:
		writeError(w, http.StatusUnauthorized, pe.Error(), []string{pe.Kind.String()})
	case pkderr.Forbidden:
		writeError(w, http.StatusForbidden, pe.Error(), []string{pe.Kind.String()})
	default:
		writeError(w, http.StatusBadRequest, pe.Error(), []string{pe.Kind.String()})
	}
}
