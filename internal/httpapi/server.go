package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gridmate/fieldsync/internal/fieldsync"
	"github.com/gridmate/fieldsync/internal/logger"
	"github.com/gridmate/fieldsync/internal/registry"
	"github.com/gridmate/fieldsync/internal/runstore"
)

type ServerConfig struct {
	JWTSecret           string
	MaxBodyBytes        int64
	DefaultSourceColumn string
}

// Server exposes the synchronization workflow over HTTP: trigger runs,
// inspect run history, read the field catalog, and watch live run events
// over WebSocket.
type Server struct {
	runner   *fieldsync.Runner
	registry *registry.Registry
	store    runstore.Store
	hub      *EventHub
	cfg      ServerConfig
	log      *logger.Logger
}

func NewServer(runner *fieldsync.Runner, reg *registry.Registry, store runstore.Store, hub *EventHub, cfg ServerConfig, log *logger.Logger) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		runner:   runner,
		registry: reg,
		store:    store,
		hub:      hub,
		cfg:      cfg,
		log:      log,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "fields" && r.Method == http.MethodGet:
		s.withScope(w, r, "fields:read", s.handleListFields)
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "runs" && r.Method == http.MethodPost:
		s.withScope(w, r, "runs:write", s.handleTriggerRun)
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "runs" && r.Method == http.MethodGet:
		s.withScope(w, r, "runs:read", s.handleListRuns)
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "runs" && parts[2] == "watch" && r.Method == http.MethodGet:
		s.withScope(w, r, "runs:read", s.handleWatch)
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "runs" && r.Method == http.MethodGet:
		s.withScope(w, r, "runs:read", func(w http.ResponseWriter, r *http.Request) {
			s.handleGetRun(w, r, parts[2])
		})
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) withScope(w http.ResponseWriter, r *http.Request, scope string, next http.HandlerFunc) {
	if _, authErr := authorizeBearer(r.Header.Get("Authorization"), s.cfg.JWTSecret, scope, time.Now()); authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message)
		return
	}
	next(w, r)
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fields": s.registry.Snapshot(r.Context()),
	})
}

type triggerRunRequest struct {
	Mode         string   `json:"mode"`
	SourceColumn string   `json:"sourceColumn"`
	FieldKeys    []string `json:"fieldKeys"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	mode := fieldsync.SelectionMode(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = fieldsync.ModeMulti
	}
	sourceColumn := strings.TrimSpace(req.SourceColumn)
	if sourceColumn == "" {
		sourceColumn = s.cfg.DefaultSourceColumn
	}
	fields := selectCatalog(s.registry.Snapshot(r.Context()), req.FieldKeys)

	report, err := s.runner.Run(r.Context(), fieldsync.RunRequest{
		Mode:         mode,
		Fields:       fields,
		SourceColumn: sourceColumn,
	})
	if err != nil {
		switch {
		case errors.Is(err, fieldsync.ErrRunInProgress):
			writeError(w, http.StatusConflict, "run_in_progress", err.Error())
		case errors.Is(err, fieldsync.ErrNoSelection), errors.Is(err, fieldsync.ErrNoFieldsSelected):
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, fieldsync.ErrLookupFailed):
			writeError(w, http.StatusBadGateway, "lookup_failed", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// selectCatalog marks the requested keys checked; with no keys the
// catalog's own defaults stand.
func selectCatalog(catalog []fieldsync.FieldSpec, keys []string) []fieldsync.FieldSpec {
	if len(keys) == 0 {
		return catalog
	}
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[strings.TrimSpace(key)] = struct{}{}
	}
	out := make([]fieldsync.FieldSpec, 0, len(catalog))
	for _, spec := range catalog {
		_, checked := wanted[spec.Key]
		spec.Checked = checked
		out = append(out, spec)
	}
	return out
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if runs == nil {
		runs = []runstore.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}
