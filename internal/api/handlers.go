package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"stocksync/internal/database"
	"stocksync/internal/queue"
)

const defaultListLimit = 50

// handleTasks serves POST /api/v1/tasks (enqueue) and GET /api/v1/tasks
// (list, optionally filtered by status).
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.enqueueTask(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) enqueueTask(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Site     string `json:"site"`
		Kind     string `json:"kind"`
		Priority int    `json:"priority"`
		Metadata string `json:"metadata"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Site == "" || body.Kind == "" {
		writeError(w, http.StatusBadRequest, "site and kind are required")
		return
	}

	task, err := s.tasks.Enqueue(r.Context(), body.Site, body.Kind, body.Priority, body.Metadata)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateTask) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", defaultListLimit)

	tasks, err := s.tasks.List(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleTask serves GET/DELETE /api/v1/tasks/{id} and
// POST /api/v1/tasks/{id}/cancel, /api/v1/tasks/{id}/retry.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	idPart, action, _ := strings.Cut(rest, "/")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteTask(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		s.cancelTask(w, r, id)
	case action == "retry" && r.Method == http.MethodPost:
		s.retryTask(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, id int64) {
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "task not found")
		case errors.Is(err, database.ErrNotTerminal):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.tasks.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) retryTask(w http.ResponseWriter, r *http.Request, id int64) {
	task, err := s.tasks.Retry(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "task not found")
		case errors.Is(err, database.ErrNotRetryable), errors.Is(err, queue.ErrRetriesExhausted):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleRuns serves GET /api/v1/runs?site=&limit=.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	site := strings.TrimSpace(r.URL.Query().Get("site"))
	limit := queryInt(r, "limit", defaultListLimit)

	runs, err := s.repo.ListRunLogs(r.Context(), site, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleStatusCheck serves POST /api/v1/status/check: a live stock
// status lookup for a handful of SKUs on one site.
func (s *Server) handleStatusCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Site string   `json:"site"`
		SKUs []string `json:"skus"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Site == "" {
		writeError(w, http.StatusBadRequest, "site is required")
		return
	}
	if len(body.SKUs) == 0 {
		writeError(w, http.StatusBadRequest, "skus is required")
		return
	}

	checker := s.checker(body.Site)
	if checker == nil {
		writeError(w, http.StatusNotFound, "unknown site")
		return
	}

	results := checker.Check(r.Context(), body.SKUs)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleExport serves POST /api/v1/exports with {"report": "runs"|"stock"}.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Report string `json:"report"`
		Site   string `json:"site"`
		Limit  int    `json:"limit"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Limit <= 0 {
		body.Limit = 200
	}

	var (
		path string
		err  error
	)
	switch body.Report {
	case "runs":
		path, err = s.exporter.RunHistory(r.Context(), body.Site, body.Limit)
	case "stock":
		if body.Site == "" {
			writeError(w, http.StatusBadRequest, "site is required for stock report")
			return
		}
		path, err = s.exporter.StockSnapshot(r.Context(), body.Site)
	default:
		writeError(w, http.StatusBadRequest, "unknown report; expected runs or stock")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
