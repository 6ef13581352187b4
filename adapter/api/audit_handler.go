package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/billora/internal/audit"
)

var auditEntities = map[string]bool{
	audit.EntitySubscription:  true,
	audit.EntityInvoice:       true,
	audit.EntityPlan:          true,
	audit.EntityUser:          true,
	audit.EntityPaymentMethod: true,
}

type auditHandler struct {
	store *audit.SQLStore
}

func newAuditHandler(store *audit.SQLStore) *auditHandler {
	return &auditHandler{store: store}
}

func (h *auditHandler) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.stats)
	r.Get("/{entity}", h.byType)
	r.Get("/{entity}/{id}", h.history)
	r.Get("/{entity}/{id}/as-of", h.asOf)
	return r
}

func entityParam(r *http.Request) (string, error) {
	entity := chi.URLParam(r, "entity")
	if !auditEntities[entity] {
		return "", badRequest("unknown entity type " + strconv.Quote(entity))
	}
	return entity, nil
}

func (h *auditHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []audit.Stat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *auditHandler) byType(w http.ResponseWriter, r *http.Request) {
	entity, err := entityParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeError(w, r, badRequest("limit must be a positive integer"))
			return
		}
	}
	entries, err := h.store.ByType(r.Context(), entity, limit)
	h.respondEntries(w, r, entries, err)
}

func (h *auditHandler) history(w http.ResponseWriter, r *http.Request) {
	entity, err := entityParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.store.History(r.Context(), entity, id)
	h.respondEntries(w, r, entries, err)
}

// asOf answers what an entity looked like at the given RFC 3339 instant.
func (h *auditHandler) asOf(w http.ResponseWriter, r *http.Request) {
	entity, err := entityParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, r, badRequest("at must be an RFC 3339 timestamp"))
		return
	}
	entry, err := h.store.AsOf(r.Context(), entity, id, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *auditHandler) respondEntries(w http.ResponseWriter, r *http.Request, entries []audit.Entry, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
