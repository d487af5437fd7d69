package services

import (
	"context"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/models"
	"github.com/shopspring/decimal"
)

type StatusSummary struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Summary aggregates one kind of document by effective status.
// The invoice-only amounts are nil for quotes.
type Summary struct {
	Kind        billing.Kind                     `json:"kind"`
	Count       int64                            `json:"count"`
	ByStatus    map[billing.Status]StatusSummary `json:"byStatus"`
	Invoiced    *decimal.Decimal                 `json:"invoiced,omitempty"`
	Paid        *decimal.Decimal                 `json:"paid,omitempty"`
	Outstanding *decimal.Decimal                 `json:"outstanding,omitempty"`
	Overdue     *decimal.Decimal                 `json:"overdue,omitempty"`
}

// Summary computes per-status counts and amounts. year 0 covers every year.
func (s *DocumentService) Summary(ctx context.Context, kind billing.Kind, year int) (*Summary, error) {
	if _, err := sequenceFor(kind); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Model(&models.Document{}).
		Select("status", "total", "paid_amount", "expiry_date").
		Where("kind = ?", kind)
	if year != 0 {
		q = q.Where("year = ?", year)
	}
	var rows []models.Document
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return summarize(kind, rows, s.now()), nil
}

func summarize(kind billing.Kind, rows []models.Document, now time.Time) *Summary {
	sum := &Summary{Kind: kind, ByStatus: map[billing.Status]StatusSummary{}}
	invoiced, paid, overdue := decimal.Zero, decimal.Zero, decimal.Zero
	for _, d := range rows {
		status := billing.EffectiveStatus(kind, d.Status, d.ExpiryDate, now)
		bucket := sum.ByStatus[status]
		bucket.Count++
		bucket.Total = bucket.Total.Add(d.Total.Decimal)
		sum.ByStatus[status] = bucket
		sum.Count++

		if kind != billing.KindInvoice || d.Status == billing.StatusDraft {
			continue
		}
		invoiced = invoiced.Add(d.Total.Decimal)
		paid = paid.Add(d.PaidAmount.Decimal)
		if status == billing.StatusOverdue {
			overdue = overdue.Add(d.Outstanding())
		}
	}
	if kind == billing.KindInvoice {
		outstanding := invoiced.Sub(paid)
		sum.Invoiced, sum.Paid, sum.Outstanding, sum.Overdue = &invoiced, &paid, &outstanding, &overdue
	}
	return sum
}
