package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

type taxRatesResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

type pendingTotalResponse struct {
	Total decimal.Decimal `json:"total"`
}

type invoiceHandler struct {
	billing *billingApp.Service
}

func newInvoiceHandler(billing *billingApp.Service) *invoiceHandler {
	return &invoiceHandler{billing: billing}
}

func (h *invoiceHandler) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/taxes", h.taxes)
	r.Get("/export", h.export)
	r.Get("/overdue", h.overdue)
	r.Get("/pending-total", h.pendingTotal)
	r.Get("/filter/date", h.filterByDate)
	r.Get("/filter/amount", h.filterByAmount)
	r.Get("/number/{number}", h.getByNumber)
	r.Get("/user/{userID}", h.listByUser)
	r.Get("/subscription/{subscriptionID}", h.listBySubscription)
	r.Get("/status/{status}", h.listByStatus)
	r.Get("/{id}", h.get)
	r.Put("/{id}/pay", h.pay)
	r.Put("/{id}/status/{status}", h.changeStatus)
	r.Delete("/{id}", h.delete)
	return r
}

func invoiceViews(invoices []*domain.Invoice) []billingApp.InvoiceView {
	return lo.Map(invoices, func(i *domain.Invoice, _ int) billingApp.InvoiceView {
		return billingApp.NewInvoiceView(i)
	})
}

func (h *invoiceHandler) respondList(w http.ResponseWriter, r *http.Request, invoices []*domain.Invoice, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceViews(invoices))
}

func (h *invoiceHandler) respondOne(w http.ResponseWriter, r *http.Request, invoice *domain.Invoice, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billingApp.NewInvoiceView(invoice))
}

func (h *invoiceHandler) list(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.billing.ListInvoices(r.Context())
	h.respondList(w, r, invoices, err)
}

func (h *invoiceHandler) taxes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, taxRatesResponse{Rates: h.billing.TaxRates()})
}

func (h *invoiceHandler) export(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.billing.ListInvoices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.csv"`)
	if err := billingApp.WriteInvoicesCSV(w, invoices); err != nil {
		writeError(w, r, err)
	}
}

func (h *invoiceHandler) overdue(w http.ResponseWriter, r *http.Request) {
	asOf, err := dateQuery(r, "as_of")
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoices, err := h.billing.ListOverdue(r.Context(), asOf)
	h.respondList(w, r, invoices, err)
}

func (h *invoiceHandler) pendingTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.billing.PendingTotal(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingTotalResponse{Total: total})
}

func (h *invoiceHandler) filterByDate(w http.ResponseWriter, r *http.Request) {
	from, err := dateQuery(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := dateQuery(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if from.IsZero() || to.IsZero() {
		writeError(w, r, badRequest("from and to are required"))
		return
	}
	invoices, err := h.billing.ListInvoicesByIssueDate(r.Context(), from, to)
	h.respondList(w, r, invoices, err)
}

func (h *invoiceHandler) filterByAmount(w http.ResponseWriter, r *http.Request) {
	minTotal, err := decimal.NewFromString(r.URL.Query().Get("min"))
	if err != nil {
		writeError(w, r, badRequest("min must be a decimal amount"))
		return
	}
	maxTotal, err := decimal.NewFromString(r.URL.Query().Get("max"))
	if err != nil {
		writeError(w, r, badRequest("max must be a decimal amount"))
		return
	}
	invoices, err := h.billing.ListInvoicesByTotal(r.Context(), minTotal, maxTotal)
	h.respondList(w, r, invoices, err)
}

func (h *invoiceHandler) getByNumber(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.billing.GetInvoiceByNumber(r.Context(), chi.URLParam(r, "number"))
	h.respondOne(w, r, invoice, err)
}

func (h *invoiceHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoices, err := h.billing.ListInvoicesByUser(r.Context(), userID)
	h.respondList(w, r, invoices, err)
}

func (h *invoiceHandler) listBySubscription(w http.ResponseWriter, r *http.Request) {
	subscriptionID, err := uuidParam(r, "subscriptionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoices, err := h.billing.ListInvoicesBySubscription(r.Context(), subscriptionID)
	h.respondList(w, r, invoices, err)
}

func (h *invoiceHandler) listByStatus(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.billing.ListInvoicesByStatus(r.Context(), chi.URLParam(r, "status"))
	h.respondList(w, r, invoices, err)
}

func (h *invoiceHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoice, err := h.billing.GetInvoice(r.Context(), id)
	h.respondOne(w, r, invoice, err)
}

func (h *invoiceHandler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoice, err := h.billing.MarkInvoicePaid(r.Context(), id)
	h.respondOne(w, r, invoice, err)
}

func (h *invoiceHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoice, err := h.billing.ChangeInvoiceStatus(r.Context(), id, chi.URLParam(r, "status"))
	h.respondOne(w, r, invoice, err)
}

func (h *invoiceHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.billing.DeleteInvoice(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
