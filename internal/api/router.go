package api

import (
	"encoding/json"
	"net/http"

	"mlgate/domain/core"
	"mlgate/internal"
	"mlgate/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the JSON endpoints under /api
func NewRouter(b *Browser, logger *internal.Logger) http.Handler {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	h := &handler{browser: b, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/experiments", h.listExperiments)
		r.Get("/experiments/{id}/runs", h.listRuns)
		r.Get("/runs/{id}", h.getRun)
	})
	return r
}

type handler struct {
	browser *Browser
	logger  *internal.Logger
}

func (h *handler) listExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := h.browser.Experiments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": exps})
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseExperimentID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, errors.WithCode(errors.CodeInvalidInput, err, "invalid experiment id"))
		return
	}
	runs, err := h.browser.Runs(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, errors.WithCode(errors.CodeInvalidInput, err, "invalid run id"))
		return
	}
	detail, err := h.browser.Run(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// StatusFor maps an application error to an HTTP status
func StatusFor(err error) int {
	switch {
	case core.IsNotFoundError(err), errors.HasCode(err, errors.CodeNotFound):
		return http.StatusNotFound
	case errors.HasCode(err, errors.CodeInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("[API] %v", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
