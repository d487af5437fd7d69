package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/config"
	"github.com/diewo77/go-erp/internal/db"
	"github.com/diewo77/go-erp/internal/lock"
	"github.com/diewo77/go-erp/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(conn))
	require.NoError(t, db.Seed(conn))
	return conn
}

func do(h http.HandlerFunc, method, target, body string, pathValues ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

type envelope struct {
	Success bool              `json:"success"`
	Result  json.RawMessage   `json:"result"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

type handlerSet struct {
	clients  *ClientHandler
	invoices *DocumentHandler
	payments *PaymentHandler
}

func newHandlers(t *testing.T) handlerSet {
	conn := setupTestDB(t)
	log := quietLogger()
	return handlerSet{
		clients:  NewClientHandler(services.NewClientService(conn, log), log),
		invoices: NewDocumentHandler(billing.KindInvoice, services.NewDocumentService(conn, log), log),
		payments: NewPaymentHandler(services.NewPaymentService(conn, lock.NewLocal(), log, config.LockConfig{Wait: time.Second, MaxAttempts: 3}), log),
	}
}

func TestCreateClientValidation(t *testing.T) {
	hs := newHandlers(t)

	rr := do(hs.clients.Create, http.MethodPost, "/api/client/create", `{"email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeBody(t, rr)
	assert.Equal(t, "required", env.Details["name"])
	assert.Equal(t, "email", env.Details["email"])

	rr = do(hs.clients.Create, http.MethodPost, "/api/client/create", `{"name":"Acme","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, rr).Error)
}

func TestCreateInvoiceRejectsNumberFromClient(t *testing.T) {
	hs := newHandlers(t)
	rr := do(hs.invoices.Create, http.MethodPost, "/api/invoice/create",
		`{"client":1,"number":42,"items":[{"itemName":"x","quantity":1,"price":"1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateInvoiceChecksClaimedTotals(t *testing.T) {
	hs := newHandlers(t)
	rr := do(hs.clients.Create, http.MethodPost, "/api/client/create", `{"name":"Acme"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	body := `{"client":1,"taxRate":10,"total":"1000",
		"items":[{"itemName":"Widget","quantity":2,"price":"250.00","total":"500"},
		         {"itemName":"Gadget","quantity":1,"price":"500.00","total":"400"}]}`
	rr = do(hs.invoices.Create, http.MethodPost, "/api/invoice/create", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeBody(t, rr)
	assert.Equal(t, "mismatch", env.Details["items[1].total"])

	body = strings.Replace(body, `"total":"400"`, `"total":"500"`, 1)
	rr = do(hs.invoices.Create, http.MethodPost, "/api/invoice/create", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "mismatch", decodeBody(t, rr).Details["total"])

	body = strings.Replace(body, `"total":"1000"`, `"total":"1100"`, 1)
	rr = do(hs.invoices.Create, http.MethodPost, "/api/invoice/create", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var doc struct {
		Total  string `json:"total"`
		Status string `json:"status"`
		Number int64  `json:"number"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, rr).Result, &doc))
	assert.Equal(t, "1100", doc.Total)
	assert.Equal(t, "draft", doc.Status)
	assert.Equal(t, int64(1), doc.Number)
}

func TestCreateInvoiceDueDateCoversWholeDay(t *testing.T) {
	hs := newHandlers(t)
	rr := do(hs.clients.Create, http.MethodPost, "/api/client/create", `{"name":"Acme"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	body := `{"client":1,"date":"2026-03-10","expiredDate":"%s","items":[{"itemName":"Widget","quantity":1,"price":"10"}]}`
	var doc struct {
		ExpiredDate time.Time `json:"expiredDate"`
	}

	rr = do(hs.invoices.Create, http.MethodPost, "/api/invoice/create", fmt.Sprintf(body, "2026-03-10"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(decodeBody(t, rr).Result, &doc))
	assert.Equal(t, time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC), doc.ExpiredDate.UTC())

	rr = do(hs.invoices.Create, http.MethodPost, "/api/invoice/create", fmt.Sprintf(body, "2026-03-10T12:00:00Z"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(decodeBody(t, rr).Result, &doc))
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), doc.ExpiredDate.UTC(), "timestamps are kept as given")
}

func TestDocumentBadDatesAndIDs(t *testing.T) {
	hs := newHandlers(t)

	rr := do(hs.invoices.Create, http.MethodPost, "/api/invoice/create", `{"client":1,"date":"10/03/2026"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_date", decodeBody(t, rr).Details["date"])

	rr = do(hs.invoices.Read, http.MethodGet, "/api/invoice/read/abc", "", "id", "abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(hs.invoices.Read, http.MethodGet, "/api/invoice/read/99", "", "id", "99")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(hs.invoices.List, http.MethodGet, "/api/invoice/list?status=accepted", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentRequiresAmount(t *testing.T) {
	hs := newHandlers(t)
	rr := do(hs.payments.Create, http.MethodPost, "/api/payment/create", `{"invoice":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "required", decodeBody(t, rr).Details["amount"])

	rr = do(hs.payments.Create, http.MethodPost, "/api/payment/create", `{"invoice":1,"amount":"-5"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "must_be_positive", decodeBody(t, rr).Details["amount"])
}
