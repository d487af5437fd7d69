package handlers

import (
	"fmt"
	"net/http"

	"github.com/diewo77/go-erp/httpx"
	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/services"
	"github.com/diewo77/go-erp/validation"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type itemRequest struct {
	ItemName    string           `json:"itemName" validate:"required,max=255"`
	Description string           `json:"description" validate:"max=500"`
	Quantity    *int64           `json:"quantity" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	// Total is optional; when given it must equal quantity × price.
	Total *decimal.Decimal `json:"total"`
}

// documentRequest is the body of create and update. Numbers and years are assigned by the
// server, so they are not accepted here.
type documentRequest struct {
	Client       uint             `json:"client" validate:"required"`
	Date         string           `json:"date"`
	ExpiredDate  string           `json:"expiredDate"`
	Currency     string           `json:"currency" validate:"omitempty,len=3,alpha"`
	Status       string           `json:"status" validate:"omitempty,eq=draft"`
	TaxRate      *decimal.Decimal `json:"taxRate"`
	DiscountType string           `json:"discountType" validate:"omitempty,oneof=amount percent"`
	Discount     *decimal.Decimal `json:"discount"`
	Credit       *decimal.Decimal `json:"credit"`
	Notes        string           `json:"notes" validate:"max=5000"`
	Items        []itemRequest    `json:"items" validate:"max=500,dive"`

	SubTotal *decimal.Decimal `json:"subTotal"`
	TaxTotal *decimal.Decimal `json:"taxTotal"`
	Total    *decimal.Decimal `json:"total"`
}

func (req *documentRequest) input() (services.DocumentInput, validation.Violations) {
	v := validation.Violations{}
	in := services.DocumentInput{
		ClientID:   req.Client,
		Date:       parseDate("date", req.Date, v),
		ExpiryDate: parseDueDate("expiredDate", req.ExpiredDate, v),
		Currency:   req.Currency,
		Discount:   billing.Discount{Type: billing.DiscountType(req.DiscountType)},
		Notes:      req.Notes,
		Claimed:    billing.Claimed{SubTotal: req.SubTotal, TaxTotal: req.TaxTotal, Total: req.Total},
	}
	if req.TaxRate != nil {
		in.TaxRate = *req.TaxRate
	}
	if req.Discount != nil {
		in.Discount.Value = *req.Discount
	}
	if req.Credit != nil {
		in.Credit = *req.Credit
	}
	in.Items = make([]billing.LineItem, 0, len(req.Items))
	for i, it := range req.Items {
		li := billing.LineItem{
			Name:        it.ItemName,
			Description: it.Description,
			Quantity:    *it.Quantity,
			UnitPrice:   *it.Price,
		}
		if it.Total != nil && !it.Total.Equal(li.Total()) {
			v.Add(fmt.Sprintf("items[%d].total", i), "mismatch")
		}
		in.Items = append(in.Items, li)
	}
	return in, v
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// DocumentHandler serves one document kind. Quotes and invoices get one handler each.
type DocumentHandler struct {
	kind billing.Kind
	svc  *services.DocumentService
	log  *logrus.Logger
}

func NewDocumentHandler(kind billing.Kind, svc *services.DocumentService, log *logrus.Logger) *DocumentHandler {
	return &DocumentHandler{kind: kind, svc: svc, log: log}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decode(w, r, &req) {
		return
	}
	in, v := req.input()
	if !violations(w, v) {
		return
	}
	doc, err := h.svc.Create(r.Context(), h.kind, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, doc, fmt.Sprintf("%s %s created", h.kind, doc.DisplayNumber()))
}

func (h *DocumentHandler) Read(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.Get(r.Context(), h.kind, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc, "")
}

// List filters by ?status= (effective status), ?client= and ?year=.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := validation.Violations{}
	f := services.ListFilter{
		Status:   billing.Status(q.Get("status")),
		ClientID: uintParam(q, "client", v),
		Year:     intParam(q, "year", v),
		Page:     pageFrom(q),
	}
	if !violations(w, v) {
		return
	}
	docs, count, err := h.svc.List(r.Context(), h.kind, f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.List(w, docs, pagination(f.Page, count))
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req documentRequest
	if !decode(w, r, &req) {
		return
	}
	in, v := req.input()
	if !violations(w, v) {
		return
	}
	doc, err := h.svc.Update(r.Context(), h.kind, id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc, fmt.Sprintf("%s %s updated", h.kind, doc.DisplayNumber()))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), h.kind, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]uint{"id": id}, fmt.Sprintf("%s deleted", h.kind))
}

func (h *DocumentHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.Send(r.Context(), h.kind, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc, fmt.Sprintf("%s %s sent", h.kind, doc.DisplayNumber()))
}

// Status applies an explicit status change. Payment statuses are refused with 409.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := h.svc.RequestStatus(r.Context(), h.kind, id, billing.Status(req.Status))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc, "")
}

func (h *DocumentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.Accept(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc, fmt.Sprintf("quote %s accepted", doc.DisplayNumber()))
}

// Convert turns an accepted quote into a draft invoice and returns the invoice.
func (h *DocumentHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Convert(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, inv, fmt.Sprintf("invoice %s created from quote", inv.DisplayNumber()))
}

func (h *DocumentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	v := validation.Violations{}
	year := intParam(r.URL.Query(), "year", v)
	if !violations(w, v) {
		return
	}
	sum, err := h.svc.Summary(r.Context(), h.kind, year)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, sum, "")
}
