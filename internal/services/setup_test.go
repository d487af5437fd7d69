package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/config"
	"github.com/diewo77/go-erp/internal/db"
	"github.com/diewo77/go-erp/internal/lock"
	"github.com/diewo77/go-erp/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	DB       *gorm.DB
	Clock    *time.Time
	Clients  *ClientService
	Modes    *PaymentModeService
	Docs     *DocumentService
	Payments *PaymentService
	Locker   *lock.Local
	Client   *models.Client
}

func newFixture(t *testing.T) *fixture {
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

	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := testNow
	now := func() time.Time { return clock }
	locker := lock.NewLocal()

	f := &fixture{
		DB:       conn,
		Clock:    &clock,
		Clients:  NewClientService(conn, log),
		Modes:    NewPaymentModeService(conn, log),
		Docs:     NewDocumentService(conn, log),
		Payments: NewPaymentService(conn, locker, log, config.LockConfig{Wait: 2 * time.Second, MaxAttempts: 3}),
		Locker:   locker,
	}
	f.Docs.Now = now
	f.Payments.Now = now

	f.Client, err = f.Clients.Create(context.Background(), ClientInput{Name: "Acme Corp", Email: "billing@acme.test", Country: "US"})
	require.NoError(t, err)
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// standardInput is 2 x 250 + 1 x 500 at 10% tax: total 1100.
func (f *fixture) standardInput() DocumentInput {
	return DocumentInput{
		ClientID:   f.Client.ID,
		Date:       testNow,
		ExpiryDate: testNow.AddDate(0, 0, 30),
		Currency:   "USD",
		TaxRate:    d("10"),
		Items: []billing.LineItem{
			{Name: "Website", Quantity: 2, UnitPrice: d("250.00")},
			{Name: "Hosting", Quantity: 1, UnitPrice: d("500.00")},
		},
	}
}

// sentInvoice creates and sends the 1100 invoice.
func (f *fixture) sentInvoice(t *testing.T) *models.Document {
	t.Helper()
	ctx := context.Background()
	inv, err := f.Docs.Create(ctx, billing.KindInvoice, f.standardInput())
	require.NoError(t, err)
	inv, err = f.Docs.Send(ctx, billing.KindInvoice, inv.ID)
	require.NoError(t, err)
	return inv
}
