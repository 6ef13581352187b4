package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

type subscribeRequest struct {
	UserID uuid.UUID        `json:"user_id" validate:"required"`
	PlanID uuid.UUID        `json:"plan_id" validate:"required"`
	Price  *decimal.Decimal `json:"price"`
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew" validate:"required"`
}

type renewResponse struct {
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	Outcome        billingApp.Outcome `json:"outcome"`
	Error          string             `json:"error,omitempty"`
}

type subscriptionHandler struct {
	billing  *billingApp.Service
	renewals *billingApp.RenewalService
}

func newSubscriptionHandler(billing *billingApp.Service, renewals *billingApp.RenewalService) *subscriptionHandler {
	return &subscriptionHandler{billing: billing, renewals: renewals}
}

func (h *subscriptionHandler) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/user/{userID}", h.listByUser)
	r.Get("/status/{status}", h.listByStatus)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/status/{status}", h.changeStatus)
	r.Patch("/{id}/auto-renew", h.setAutoRenew)
	r.Post("/{id}/renew", h.renew)
	r.Delete("/{id}", h.delete)
	return r
}

func subscriptionViews(subs []*domain.Subscription) []billingApp.SubscriptionView {
	return lo.Map(subs, func(s *domain.Subscription, _ int) billingApp.SubscriptionView {
		return billingApp.NewSubscriptionView(s)
	})
}

func (h *subscriptionHandler) list(w http.ResponseWriter, r *http.Request) {
	subs, err := h.billing.ListSubscriptions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionViews(subs))
}

func (h *subscriptionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.billing.Subscribe(r.Context(), billingApp.SubscribeInput{
		UserID: req.UserID,
		PlanID: req.PlanID,
		Price:  req.Price,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, billingApp.NewSubscriptionView(sub))
}

func (h *subscriptionHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	subs, err := h.billing.ListSubscriptionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionViews(subs))
}

func (h *subscriptionHandler) listByStatus(w http.ResponseWriter, r *http.Request) {
	subs, err := h.billing.ListSubscriptionsByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionViews(subs))
}

func (h *subscriptionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.billing.GetSubscription(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billingApp.NewSubscriptionView(sub))
}

func (h *subscriptionHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.billing.ChangeSubscriptionStatus(r.Context(), id,
		chi.URLParam(r, "status"), r.URL.Query().Get("reason"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billingApp.NewSubscriptionView(sub))
}

func (h *subscriptionHandler) setAutoRenew(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req autoRenewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.billing.SetAutoRenew(r.Context(), id, *req.AutoRenew)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billingApp.NewSubscriptionView(sub))
}

// renew charges one subscription now, outside the daily batch.
func (h *subscriptionHandler) renew(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := h.renewals.ForceRenewal(r.Context(), id)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		writeError(w, r, err)
		return
	}
	resp := renewResponse{SubscriptionID: id, Outcome: outcome}
	if err != nil {
		// A failed charge is a result, not a server error.
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *subscriptionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.billing.DeleteSubscription(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
