package api

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/deckservice"
	"github.com/starford/deckhand/internal/ledger"
	"github.com/starford/deckhand/internal/source"
)

// Handler holds API route handlers.
type Handler struct {
	svc *deckservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *deckservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListDecks handles GET /api/decks.
//
//	@Summary		List registered decks
//	@Tags			decks
//	@Produce		json
//	@Success		200	{object}	DeckListResponse
//	@Security		BearerAuth
//	@Router			/decks [get]
func (h *Handler) ListDecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DeckListResponse{Decks: h.svc.List()})
}

// GetDeck handles GET /api/decks/{name}.
//
//	@Summary		Get the resolved state of a deck
//	@Tags			decks
//	@Produce		json
//	@Param			name	path		string	true	"Deck name"
//	@Success		200		{object}	DeckDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decks/{name} [get]
func (h *Handler) GetDeck(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	det, err := h.svc.Describe(name)
	if err != nil {
		writeError(w, "get deck", name, err)
		return
	}
	writeJSON(w, http.StatusOK, det)
}

// GetEntry handles GET /api/decks/{name}/entries/{id}.
//
//	@Summary		Get a single card of a deck
//	@Tags			decks
//	@Produce		json
//	@Param			name	path		string	true	"Deck name"
//	@Param			id		path		string	true	"Card id"
//	@Success		200		{object}	deck.Entry
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decks/{name}/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, err := h.svc.Entry(name, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get entry", name, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// SyncDeck handles POST /api/decks/{name}/sync.
//
//	@Summary		Run a sync pass on a deck
//	@Tags			decks
//	@Produce		json
//	@Param			name	path		string	true	"Deck name"
//	@Success		200		{object}	SyncResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/decks/{name}/sync [post]
func (h *Handler) SyncDeck(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	outcome, err := h.svc.Sync(r.Context(), name)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	resp := SyncResponse{Deck: name, Outcome: outcome.String()}
	if d, gerr := h.svc.Get(name); gerr == nil {
		if st := d.State(); st != nil {
			resp.Revision = st.Revision
		}
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/decks/{name}/history.
//
//	@Summary		List recorded sync passes of a deck
//	@Tags			decks
//	@Produce		json
//	@Param			name	path		string	true	"Deck name"
//	@Param			limit	query		int		false	"Max passes"
//	@Success		200		{object}	HistoryResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decks/{name}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	passes, err := h.svc.History(name, limit)
	if err != nil {
		writeError(w, "history", name, err)
		return
	}
	if passes == nil {
		passes = []ledger.Pass{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Passes: passes})
}

// Icon handles GET /api/decks/{name}/icons/{icon}.
//
//	@Summary		Resolve an icon name against the deck's icon directory
//	@Tags			decks
//	@Produce		json
//	@Param			name	path		string	true	"Deck name"
//	@Param			icon	path		string	true	"Icon name without extension"
//	@Success		200		{object}	IconResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decks/{name}/icons/{icon} [get]
func (h *Handler) Icon(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	det, err := h.svc.Describe(name)
	if err != nil {
		writeError(w, "icon", name, err)
		return
	}
	icon := chi.URLParam(r, "icon")
	p, ok := source.FindIcon(filepath.Dir(det.Path), det.General.IconPath, icon)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("icon not found"))
		return
	}
	writeJSON(w, http.StatusOK, IconResponse{Icon: icon, Path: p})
}

// statusFor maps deck error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrCyclicDependency),
		errors.Is(err, apperr.ErrMissingDependency),
		errors.Is(err, apperr.ErrInvalidDefinition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, op, name string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		writeJSON(w, status, errorBody("not found"))
	case http.StatusInternalServerError:
		slog.Error(op+" failed", slog.String("deck", name), slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
	default:
		writeJSON(w, status, errorBody(err.Error()))
	}
}
