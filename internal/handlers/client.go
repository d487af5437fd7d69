package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-erp/httpx"
	"github.com/diewo77/go-erp/internal/services"
	"github.com/sirupsen/logrus"
)

type clientRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"max=50"`
	Country string `json:"country" validate:"max=100"`
	Address string `json:"address" validate:"max=500"`
}

type ClientHandler struct {
	svc *services.ClientService
	log *logrus.Logger
}

func NewClientHandler(svc *services.ClientService, log *logrus.Logger) *ClientHandler {
	return &ClientHandler{svc: svc, log: log}
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.Create(r.Context(), services.ClientInput{
		Name:    strings.TrimSpace(req.Name),
		Email:   req.Email,
		Phone:   req.Phone,
		Country: req.Country,
		Address: req.Address,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, c, "client created")
}

func (h *ClientHandler) Read(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, c, "")
}

// List supports ?q= to search by name or email.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := pageFrom(q)
	clients, count, err := h.svc.List(r.Context(), strings.TrimSpace(q.Get("q")), p)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.List(w, clients, pagination(p, count))
}
