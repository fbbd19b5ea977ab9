// Package api implements the HTTP control plane: JSON endpoints that
// create, read, update, and delete records, each mutation persisting to
// the backing file before the response is sent.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dnsscience/authdnsd/internal/metrics"
	"github.com/dnsscience/authdnsd/internal/store"
)

// Server wires the control API's HTTP handlers to a shared Store.
type Server struct {
	store       *store.Store
	backingFile string
	instanceID  string
	startedAt   time.Time
	log         *zap.Logger
}

// New creates a control API server over st, persisting mutations to
// backingFile.
func New(st *store.Store, backingFile, instanceID string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:       st,
		backingFile: backingFile,
		instanceID:  instanceID,
		startedAt:   time.Now(),
		log:         log,
	}
}

// Handler returns the composed http.Handler for the control API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /update", s.handleUpdate)
	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("PUT /records/{name}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /records/{name}", s.handleDeleteRecord)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// updateRequest is the body accepted by POST /update and, partially, by
// PUT /records/{name}.
// TTL is a pointer so PUT /records/{name} can distinguish "not supplied,
// leave unchanged" from "explicitly set to 0" (0 is a valid, storable
// TTL).
type updateRequest struct {
	Name       string  `json:"name"`
	IP         string  `json:"ip"`
	TTL        *uint32 `json:"ttl"`
	RecordType string  `json:"record_type"`
	Class      string  `json:"class"`
	Value      string  `json:"value"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.observe("update", start)

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "update", http.StatusBadRequest, "malformed JSON body")
		return
	}

	var ttl uint32
	if req.TTL != nil {
		ttl = *req.TTL
	}
	rec := store.Record{
		Name:       req.Name,
		IP:         req.IP,
		TTL:        ttl,
		RecordType: req.RecordType,
		Class:      req.Class,
		Value:      req.Value,
	}

	result, err := s.store.UpsertAndPersist(rec, s.backingFile)
	if err != nil {
		if isValidationError(err) {
			s.writeError(w, "update", http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("persist failed on update", zap.String("name", req.Name), zap.Error(err))
		s.writeError(w, "update", http.StatusInternalServerError, "internal error persisting record")
		return
	}

	metrics.APIRequestsTotal.WithLabelValues("update", "success").Inc()
	s.writeJSON(w, http.StatusOK, statusResponse{Status: result.String()})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.observe("list", start)

	records := s.store.List()
	metrics.APIRequestsTotal.WithLabelValues("list", "success").Inc()
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.observe("records_put", start)

	name := r.PathValue("name")
	existing, ok := s.store.Lookup(name)
	if !ok {
		s.writeError(w, "records_put", http.StatusNotFound, "record not found")
		return
	}

	var patch updateRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, "records_put", http.StatusBadRequest, "malformed JSON body")
		return
	}

	updated := existing
	if patch.IP != "" {
		updated.IP = patch.IP
	}
	if patch.TTL != nil {
		updated.TTL = *patch.TTL
	}
	if patch.RecordType != "" {
		updated.RecordType = patch.RecordType
	}
	if patch.Class != "" {
		updated.Class = patch.Class
	}
	if patch.Value != "" {
		updated.Value = patch.Value
	}

	if _, err := s.store.UpsertAndPersist(updated, s.backingFile); err != nil {
		if isValidationError(err) {
			s.writeError(w, "records_put", http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("persist failed on update", zap.String("name", name), zap.Error(err))
		s.writeError(w, "records_put", http.StatusInternalServerError, "internal error persisting record")
		return
	}

	metrics.APIRequestsTotal.WithLabelValues("records_put", "success").Inc()
	s.writeJSON(w, http.StatusOK, statusResponse{Status: store.Updated.String()})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.observe("records_delete", start)

	name := r.PathValue("name")
	if err := s.store.DeleteAndPersist(name, s.backingFile); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, "records_delete", http.StatusNotFound, "record not found")
			return
		}
		s.log.Error("persist failed on delete", zap.String("name", name), zap.Error(err))
		s.writeError(w, "records_delete", http.StatusInternalServerError, "internal error persisting deletion")
		return
	}

	metrics.APIRequestsTotal.WithLabelValues("records_delete", "success").Inc()
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

// handleStatus is a supplemented endpoint (not in the core contract)
// reporting instance identity and uptime, useful for smoke-testing a
// freshly started process.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		InstanceID string `json:"instance_id"`
		UptimeSecs float64 `json:"uptime_seconds"`
		Records    int     `json:"records"`
	}{
		InstanceID: s.instanceID,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		Records:    s.store.Len(),
	})
}

func isValidationError(err error) bool {
	return err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrIO)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response body", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, endpoint string, status int, reason string) {
	outcome := "client_error"
	if status >= 500 {
		outcome = "io_error"
	} else if status == http.StatusNotFound {
		outcome = "not_found"
	} else if status == http.StatusBadRequest {
		outcome = "validation_error"
	}
	metrics.APIRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	s.writeJSON(w, status, errorResponse{Error: reason})
}

func (s *Server) observe(endpoint string, start time.Time) {
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
