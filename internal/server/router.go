// Package server wires services and handlers into the HTTP API.
package server

import (
	"net/http"

	"github.com/diewo77/go-erp/auth"
	"github.com/diewo77/go-erp/httpx"
	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/config"
	"github.com/diewo77/go-erp/internal/handlers"
	"github.com/diewo77/go-erp/internal/lock"
	"github.com/diewo77/go-erp/internal/services"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the collaborators New needs.
type Deps struct {
	DB     *gorm.DB
	Log    *logrus.Logger
	Auth   *auth.Authenticator
	Locker lock.Locker
	Lock   config.LockConfig
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	docs := services.NewDocumentService(d.DB, d.Log)
	clients := handlers.NewClientHandler(services.NewClientService(d.DB, d.Log), d.Log)
	modes := handlers.NewPaymentModeHandler(services.NewPaymentModeService(d.DB, d.Log), d.Log)
	payments := handlers.NewPaymentHandler(services.NewPaymentService(d.DB, d.Locker, d.Log, d.Lock), d.Log)
	invoices := handlers.NewDocumentHandler(billing.KindInvoice, docs, d.Log)
	quotes := handlers.NewDocumentHandler(billing.KindQuote, docs, d.Log)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/client/create", clients.Create)
	api.HandleFunc("GET /api/client/read/{id}", clients.Read)
	api.HandleFunc("GET /api/client/list", clients.List)

	api.HandleFunc("POST /api/paymentmode/create", modes.Create)
	api.HandleFunc("GET /api/paymentmode/list", modes.List)

	for name, h := range map[string]*handlers.DocumentHandler{"invoice": invoices, "quote": quotes} {
		base := "/api/" + name
		api.HandleFunc("POST "+base+"/create", h.Create)
		api.HandleFunc("GET "+base+"/read/{id}", h.Read)
		api.HandleFunc("GET "+base+"/list", h.List)
		api.HandleFunc("PATCH "+base+"/update/{id}", h.Update)
		api.HandleFunc("DELETE "+base+"/delete/{id}", h.Delete)
		api.HandleFunc("POST "+base+"/send/{id}", h.Send)
		api.HandleFunc("GET "+base+"/summary", h.Summary)
	}
	api.HandleFunc("POST /api/invoice/status/{id}", invoices.Status)
	api.HandleFunc("POST /api/quote/accept/{id}", quotes.Accept)
	api.HandleFunc("POST /api/quote/convert/{id}", quotes.Convert)

	api.HandleFunc("POST /api/payment/create", payments.Create)
	api.HandleFunc("GET /api/payment/read/{id}", payments.Read)
	api.HandleFunc("GET /api/payment/list", payments.List)

	api.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	})

	mux.Handle("/api/", d.Auth.Protect(api))

	return withRequestID(withLogging(d.Log, withRecover(d.Log, mux)))
}
