package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-erp/httpx"
	"github.com/diewo77/go-erp/internal/services"
	"github.com/sirupsen/logrus"
)

type paymentModeRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsDefault   bool   `json:"isDefault"`
	Enabled     *bool  `json:"enabled"`
}

type PaymentModeHandler struct {
	svc *services.PaymentModeService
	log *logrus.Logger
}

func NewPaymentModeHandler(svc *services.PaymentModeService, log *logrus.Logger) *PaymentModeHandler {
	return &PaymentModeHandler{svc: svc, log: log}
}

func (h *PaymentModeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req paymentModeRequest
	if !decode(w, r, &req) {
		return
	}
	enabled := req.Enabled == nil || *req.Enabled
	pm, err := h.svc.Create(r.Context(), services.PaymentModeInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Enabled:     enabled,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, pm, "payment mode created")
}

func (h *PaymentModeHandler) List(w http.ResponseWriter, r *http.Request) {
	modes, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, modes, "")
}
