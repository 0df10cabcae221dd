package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/noteservice"
	"github.com/starford/vaultsnap/internal/settings"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
	rt  Runtime
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, rt Runtime) *Handler {
	return &Handler{svc: svc, rt: rt}
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get the live processing settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	Settings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings())
}

// PutSettings handles PUT /api/settings. Fields missing from the body keep
// their current value.
//
//	@Summary		Replace processing settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		Settings	true	"Settings"
//	@Success		200		{object}	Settings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorDetail("invalid JSON body", err))
		return
	}

	// Decoding over the current value keeps fields missing from the body.
	var decodeErr error
	next, err := h.svc.UpdateSettings(func(s *settings.Settings) error {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		decodeErr = dec.Decode(s)
		return decodeErr
	})
	switch {
	case decodeErr != nil:
		writeJSON(w, http.StatusBadRequest, errorDetail("invalid JSON body", decodeErr))
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorDetail("invalid settings", err))
		return
	}
	slog.Info("api: settings updated")
	writeJSON(w, http.StatusOK, next)
}

// Status handles GET /api/status.
//
//	@Summary		Get watcher status and the last processed image
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Folder:   h.rt.Folder,
		Vault:    h.rt.Vault,
		Cooldown: h.svc.Settings().Cooldown,
	}
	if h.rt.Processor != nil {
		resp.Last = h.rt.Processor.Last()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Preview handles GET /api/preview.
//
//	@Summary		Preview the next image for a note without side effects
//	@Tags			preview
//	@Produce		json
//	@Param			path	query		string	false	"Note path; latest note when empty"
//	@Param			ext		query		string	false	"Image extension"	default(.png)
//	@Success		200		{object}	Preview
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := h.svc.Preview(r.Context(), q.Get("path"), q.Get("ext"))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrNoCandidate):
			writeJSON(w, http.StatusNotFound, errorBody("no note in vault"))
		default:
			slog.Error("api: preview failed", slog.String("path", q.Get("path")), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// History handles GET /api/history.
//
//	@Summary		List processed images, newest first
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("api: history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// HistoryEntry handles GET /api/history/{id}.
//
//	@Summary		Get one processed image
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"Entry ID"
//	@Success		200	{object}	models.Processed
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{id} [get]
func (h *Handler) HistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.svc.Entry(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("api: history entry failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}
