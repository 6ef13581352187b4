package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	paymentApp "github.com/felixgeelhaar/billora/internal/payment/application"
)

type addMethodRequest struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	Type        string    `json:"type" validate:"required,oneof=credit_card paypal bank_transfer"`
	HolderName  string    `json:"holder_name" validate:"max=255"`
	MakeDefault bool      `json:"make_default"`

	CardNumber string `json:"card_number" validate:"omitempty,numeric"`
	CVV        string `json:"cvv" validate:"omitempty,numeric"`
	ExpMonth   int    `json:"exp_month" validate:"gte=0,lte=12"`
	ExpYear    int    `json:"exp_year"`
	Brand      string `json:"brand"`

	PayPalEmail string `json:"paypal_email" validate:"omitempty,email"`
	PayPalID    string `json:"paypal_id"`

	BankName    string `json:"bank_name"`
	IBAN        string `json:"iban"`
	SWIFT       string `json:"swift"`
	BankCountry string `json:"bank_country"`
}

type paymentHandler struct {
	payments *paymentApp.Service
}

func newPaymentHandler(payments *paymentApp.Service) *paymentHandler {
	return &paymentHandler{payments: payments}
}

func (h *paymentHandler) routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.add)
	r.Get("/user/{userID}", h.listByUser)
	r.Put("/{id}/default", h.setDefault)
	r.Put("/{id}/deactivate", h.deactivate)
	r.Delete("/{id}", h.delete)
	return r
}

func (h *paymentHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addMethodRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.payments.Add(r.Context(), paymentApp.AddInput{
		UserID:      req.UserID,
		Type:        req.Type,
		HolderName:  req.HolderName,
		MakeDefault: req.MakeDefault,
		CardNumber:  req.CardNumber,
		CVV:         req.CVV,
		ExpMonth:    req.ExpMonth,
		ExpYear:     req.ExpYear,
		Brand:       req.Brand,
		PayPalEmail: req.PayPalEmail,
		PayPalID:    req.PayPalID,
		BankName:    req.BankName,
		IBAN:        req.IBAN,
		SWIFT:       req.SWIFT,
		BankCountry: req.BankCountry,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *paymentHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := h.payments.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *paymentHandler) setDefault(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.payments.SetDefault(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *paymentHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.payments.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *paymentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.payments.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
