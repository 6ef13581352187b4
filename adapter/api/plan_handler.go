package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

type planRequest struct {
	Name            string          `json:"name" validate:"required,max=255"`
	Tier            string          `json:"tier" validate:"required"`
	MonthlyPrice    decimal.Decimal `json:"monthly_price"`
	Description     string          `json:"description"`
	Features        []string        `json:"features"`
	MaxUsers        int             `json:"max_users" validate:"gte=0"`
	StorageGB       int             `json:"storage_gb" validate:"gte=0"`
	PrioritySupport bool            `json:"priority_support"`
	Active          *bool           `json:"active"`
	DisplayOrder    int             `json:"display_order"`
}

func (req planRequest) input() billingApp.PlanInput {
	return billingApp.PlanInput{
		Name:            req.Name,
		Tier:            req.Tier,
		MonthlyPrice:    req.MonthlyPrice,
		Description:     req.Description,
		Features:        req.Features,
		MaxUsers:        req.MaxUsers,
		StorageGB:       req.StorageGB,
		PrioritySupport: req.PrioritySupport,
		Active:          req.Active,
		DisplayOrder:    req.DisplayOrder,
	}
}

type planHandler struct {
	billing *billingApp.Service
}

func newPlanHandler(billing *billingApp.Service) *planHandler {
	return &planHandler{billing: billing}
}

func (h *planHandler) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/active", h.listActive)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	return r
}

func planViews(plans []*domain.Plan) []billingApp.PlanView {
	return lo.Map(plans, func(p *domain.Plan, _ int) billingApp.PlanView {
		return billingApp.NewPlanView(p)
	})
}

func (h *planHandler) list(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.ListPlans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planViews(plans))
}

func (h *planHandler) listActive(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.ListActivePlans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planViews(plans))
}

func (h *planHandler) create(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.billing.CreatePlan(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, billingApp.NewPlanView(plan))
}

func (h *planHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.billing.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billingApp.NewPlanView(plan))
}

func (h *planHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req planRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.billing.UpdatePlan(r.Context(), id, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billingApp.NewPlanView(plan))
}

func (h *planHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.billing.DeletePlan(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
