package handlers

import (
	"fmt"
	"net/http"

	"github.com/diewo77/go-erp/httpx"
	"github.com/diewo77/go-erp/internal/services"
	"github.com/diewo77/go-erp/validation"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type paymentRequest struct {
	Invoice     uint             `json:"invoice" validate:"required"`
	Client      uint             `json:"client"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Currency    string           `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMode uint             `json:"paymentMode"`
	Ref         string           `json:"ref" validate:"max=255"`
	Description string           `json:"description" validate:"max=5000"`
	Date        string           `json:"date"`
}

type PaymentHandler struct {
	svc *services.PaymentService
	log *logrus.Logger
}

func NewPaymentHandler(svc *services.PaymentService, log *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

// Create applies a payment to an invoice. The response carries the payment and the
// updated invoice.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decode(w, r, &req) {
		return
	}
	v := validation.Violations{}
	meta := services.PaymentMeta{
		Currency:      req.Currency,
		PaymentModeID: req.PaymentMode,
		Reference:     req.Ref,
		Description:   req.Description,
		Date:          parseDate("date", req.Date, v),
		ClientID:      req.Client,
	}
	if !violations(w, v) {
		return
	}
	receipt, err := h.svc.ApplyPayment(r.Context(), req.Invoice, *req.Amount, meta)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, receipt, fmt.Sprintf("payment %s recorded", receipt.Payment.DisplayNumber()))
}

func (h *PaymentHandler) Read(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, p, "")
}

// List filters by ?invoice= and ?client=.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := validation.Violations{}
	f := services.PaymentFilter{
		InvoiceID: uintParam(q, "invoice", v),
		ClientID:  uintParam(q, "client", v),
		Page:      pageFrom(q),
	}
	if !violations(w, v) {
		return
	}
	payments, count, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.List(w, payments, pagination(f.Page, count))
}
