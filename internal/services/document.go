package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/config"
	"github.com/diewo77/go-erp/internal/db"
	"github.com/diewo77/go-erp/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultValidityDays is used when a document is created without an expiry date.
const DefaultValidityDays = 30

// DocumentInput is the editable content of a quote or invoice.
type DocumentInput struct {
	ClientID   uint
	Date       time.Time
	ExpiryDate time.Time
	Currency   string
	TaxRate    decimal.Decimal
	Discount   billing.Discount
	Credit     decimal.Decimal
	Items      []billing.LineItem
	Notes      string
	// Claimed totals are checked against the computed ones, never stored as given.
	Claimed billing.Claimed
}

// ListFilter narrows ListDocuments. Status matches the effective status, so
// "overdue" and "expired" work as filters too.
type ListFilter struct {
	Status   billing.Status
	ClientID uint
	Year     int
	Page     Page
}

type DocumentService struct {
	DB  *gorm.DB
	Log *logrus.Logger
	Now func() time.Time
}

func NewDocumentService(db *gorm.DB, log *logrus.Logger) *DocumentService {
	return &DocumentService{DB: db, Log: log, Now: systemNow}
}

func (s *DocumentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return systemNow()
}

func sequenceFor(kind billing.Kind) (string, error) {
	switch kind {
	case billing.KindInvoice:
		return db.SeqInvoice, nil
	case billing.KindQuote:
		return db.SeqQuote, nil
	}
	return "", billing.NewValidationError("kind", "invalid")
}

// prepare validates in and returns an unsaved document carrying the computed totals.
func (s *DocumentService) prepare(in DocumentInput, now time.Time) (*models.Document, error) {
	doc := &models.Document{
		ClientID:      in.ClientID,
		Date:          in.Date.UTC(),
		ExpiryDate:    in.ExpiryDate.UTC(),
		Currency:      billing.NormalizeCurrency(in.Currency),
		TaxRate:       models.Dec(in.TaxRate),
		DiscountType:  in.Discount.Type,
		DiscountValue: models.Dec(in.Discount.Value),
		Credit:        models.Dec(in.Credit),
		Notes:         in.Notes,
	}
	if doc.Currency == "" {
		doc.Currency = billing.DefaultCurrency
	}
	if doc.DiscountType == "" {
		doc.DiscountType = billing.DiscountAmount
	}
	if in.Date.IsZero() {
		doc.Date = now
	}
	if in.ExpiryDate.IsZero() {
		doc.ExpiryDate = doc.Date.AddDate(0, 0, DefaultValidityDays)
	}

	verr := &billing.ValidationError{}
	if doc.ClientID == 0 {
		verr.Add("client", "required")
	}
	if doc.ExpiryDate.Before(doc.Date) {
		verr.Add("expiredDate", "before_date")
	}
	totals, err := billing.ComputeTotals(in.Items, doc.Modifiers())
	if err != nil {
		if !verr.Merge(err) {
			return nil, err
		}
	} else if err := in.Claimed.Verify(totals); err != nil {
		verr.Merge(err)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	doc.SetItems(in.Items)
	doc.ApplyTotals(totals)
	return doc, nil
}

// Create stores a new draft and assigns it the next number of its kind and year.
func (s *DocumentService) Create(ctx context.Context, kind billing.Kind, in DocumentInput) (*models.Document, error) {
	seq, err := sequenceFor(kind)
	if err != nil {
		return nil, err
	}
	now := s.now()
	doc, err := s.prepare(in, now)
	if err != nil {
		return nil, err
	}
	doc.Kind = kind
	doc.Year = doc.Date.Year()
	doc.Status = billing.StatusDraft
	doc.Version = 1

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := clientExists(tx, doc.ClientID)
		if err != nil {
			return err
		}
		if !ok {
			return billing.NewValidationError("client", "not_found")
		}
		if doc.Number, err = db.NextNumber(tx, seq, doc.Year); err != nil {
			return err
		}
		return tx.Create(doc).Error
	})
	if err != nil {
		if !errors.Is(err, billing.ErrValidation) {
			config.LogError(s.Log, "documents", "Create", "store document", map[string]any{"kind": kind, "client": doc.ClientID}, err)
		}
		return nil, err
	}
	doc.Decorate(now)
	s.Log.WithFields(logrus.Fields{
		"module": "documents",
		"kind":   kind,
		"id":     doc.ID,
		"number": doc.DisplayNumber(),
		"total":  doc.Total.String(),
	}).Info("document created")
	return doc, nil
}

// Get returns a document with its items, client and read-time views.
func (s *DocumentService) Get(ctx context.Context, kind billing.Kind, id uint) (*models.Document, error) {
	tx := s.DB.WithContext(ctx)
	doc, err := loadDocument(tx, kind, id, false)
	if err != nil {
		return nil, err
	}
	var client models.Client
	if err := tx.Unscoped().First(&client, doc.ClientID).Error; err == nil {
		doc.Client = &client
	}
	doc.Decorate(s.now())
	return doc, nil
}

// List returns one page of documents, newest number first, and the total match count.
func (s *DocumentService) List(ctx context.Context, kind billing.Kind, f ListFilter) ([]models.Document, int64, error) {
	if _, err := sequenceFor(kind); err != nil {
		return nil, 0, err
	}
	now := s.now()
	p := f.Page.Normalize()

	q := s.DB.WithContext(ctx).Model(&models.Document{}).Where("kind = ?", kind)
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Year != 0 {
		q = q.Where("year = ?", f.Year)
	}
	if f.Status != "" {
		if !f.Status.Valid(kind) {
			return nil, 0, billing.NewValidationError("status", "invalid")
		}
		q = whereEffectiveStatus(q, kind, f.Status, now)
	}
	q = q.Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var docs []models.Document
	err := q.Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Preload("Client").
		Order("year DESC, number DESC").
		Limit(p.Items).Offset(p.Offset()).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range docs {
		docs[i].Decorate(now)
	}
	return docs, count, nil
}

func whereEffectiveStatus(q *gorm.DB, kind billing.Kind, status billing.Status, now time.Time) *gorm.DB {
	if status.IsView() {
		return q.Where("status IN ? AND expiry_date < ?", billing.StoredStatuses(kind, status), now)
	}
	// a stored status that turns into a view after expiry only matches while not expired
	if billing.EffectiveStatus(kind, status, now.Add(-time.Second), now) != status {
		return q.Where("status = ? AND expiry_date >= ?", status, now)
	}
	return q.Where("status = ?", status)
}

// Update replaces the content of a draft and recomputes its totals.
func (s *DocumentService) Update(ctx context.Context, kind billing.Kind, id uint, in DocumentInput) (*models.Document, error) {
	now := s.now()
	next, err := s.prepare(in, now)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocument(tx, kind, id, true)
		if err != nil {
			return err
		}
		if !billing.Editable(doc.Status) {
			return &billing.InvalidStateError{Kind: kind, Status: doc.Status, Op: "update"}
		}
		ok, err := clientExists(tx, next.ClientID)
		if err != nil {
			return err
		}
		if !ok {
			return billing.NewValidationError("client", "not_found")
		}

		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.DocumentItem{}).Error; err != nil {
			return err
		}
		if len(next.Items) > 0 {
			for i := range next.Items {
				next.Items[i].DocumentID = doc.ID
			}
			if err := tx.Create(&next.Items).Error; err != nil {
				return err
			}
		}
		return saveVersioned(tx, doc, map[string]any{
			"client_id":      next.ClientID,
			"date":           next.Date,
			"expiry_date":    next.ExpiryDate,
			"currency":       next.Currency,
			"tax_rate":       next.TaxRate,
			"discount_type":  next.DiscountType,
			"discount_value": next.DiscountValue,
			"credit":         next.Credit,
			"sub_total":      next.SubTotal,
			"tax_total":      next.TaxTotal,
			"discount_total": next.DiscountTotal,
			"credit_applied": next.CreditApplied,
			"written_off":    next.WrittenOff,
			"total":          next.Total,
			"notes":          next.Notes,
		})
	})
	if err != nil {
		return nil, s.conflict(err, kind, id)
	}
	s.Log.WithFields(logrus.Fields{"module": "documents", "kind": kind, "id": id}).Info("draft updated")
	return s.Get(ctx, kind, id)
}

// Delete soft-deletes a draft. Its number is not handed out again.
func (s *DocumentService) Delete(ctx context.Context, kind billing.Kind, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocument(tx, kind, id, true)
		if err != nil {
			return err
		}
		if !billing.Editable(doc.Status) {
			return &billing.InvalidStateError{Kind: kind, Status: doc.Status, Op: "delete"}
		}
		res := tx.Where("version = ?", doc.Version).Delete(&models.Document{}, doc.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}
		return nil
	})
	if err != nil {
		return s.conflict(err, kind, id)
	}
	s.Log.WithFields(logrus.Fields{"module": "documents", "kind": kind, "id": id}).Info("draft deleted")
	return nil
}

// Send moves a draft to sent, freezing its items and totals.
func (s *DocumentService) Send(ctx context.Context, kind billing.Kind, id uint) (*models.Document, error) {
	return s.transition(ctx, kind, id, billing.StatusSent)
}

// Accept records the customer's acceptance of a sent, unexpired quote.
func (s *DocumentService) Accept(ctx context.Context, id uint) (*models.Document, error) {
	return s.transition(ctx, billing.KindQuote, id, billing.StatusAccepted)
}

// RequestStatus handles an explicit status change asked for by an API caller.
// Payment-derived statuses are refused: only recorded payments set them.
func (s *DocumentService) RequestStatus(ctx context.Context, kind billing.Kind, id uint, to billing.Status) (*models.Document, error) {
	if !to.Valid(kind) {
		return nil, billing.NewValidationError("status", "invalid")
	}
	return s.transition(ctx, kind, id, to)
}

func (s *DocumentService) transition(ctx context.Context, kind billing.Kind, id uint, to billing.Status) (*models.Document, error) {
	now := s.now()
	var from billing.Status
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocument(tx, kind, id, true)
		if err != nil {
			return err
		}
		from = doc.Status
		if err := billing.Transition(doc.Snapshot(), to, billing.ActorExternal, now); err != nil {
			return err
		}
		fields := map[string]any{"status": to}
		if to == billing.StatusSent {
			fields["sent_at"] = now
		}
		return saveVersioned(tx, doc, fields)
	})
	if err != nil {
		return nil, s.conflict(err, kind, id)
	}
	s.Log.WithFields(logrus.Fields{
		"module": "documents",
		"kind":   kind,
		"id":     id,
		"from":   from,
		"to":     to,
	}).Info("status changed")
	return s.Get(ctx, kind, id)
}

// Convert turns an accepted quote into a new draft invoice. A quote converts once.
func (s *DocumentService) Convert(ctx context.Context, quoteID uint) (*models.Document, error) {
	now := s.now()
	var invoiceID uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := loadDocument(tx, billing.KindQuote, quoteID, true)
		if err != nil {
			return err
		}
		if quote.Status != billing.StatusAccepted {
			return &billing.InvalidStateError{Kind: billing.KindQuote, Status: quote.Status, Op: "convert"}
		}
		if quote.ConvertedInvoiceID != nil {
			return &billing.InvalidStateError{Kind: billing.KindQuote, Status: quote.Status, Op: "re-convert"}
		}

		validity := quote.ExpiryDate.Sub(quote.Date)
		if validity <= 0 {
			validity = DefaultValidityDays * 24 * time.Hour
		}
		inv := models.Document{
			Kind:            billing.KindInvoice,
			Year:            now.Year(),
			ClientID:        quote.ClientID,
			Date:            now,
			ExpiryDate:      now.Add(validity),
			Currency:        quote.Currency,
			TaxRate:         quote.TaxRate,
			DiscountType:    quote.DiscountType,
			DiscountValue:   quote.DiscountValue,
			Credit:          quote.Credit,
			Notes:           quote.Notes,
			Status:          billing.StatusDraft,
			Version:         1,
			ConvertedFromID: &quote.ID,
		}
		totals, err := billing.ComputeTotals(quote.LineItems(), quote.Modifiers())
		if err != nil {
			return err
		}
		inv.SetItems(quote.LineItems())
		inv.ApplyTotals(totals)
		if inv.Number, err = db.NextNumber(tx, db.SeqInvoice, inv.Year); err != nil {
			return err
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		invoiceID = inv.ID
		return saveVersioned(tx, quote, map[string]any{"converted_invoice_id": inv.ID})
	})
	if err != nil {
		return nil, s.conflict(err, billing.KindQuote, quoteID)
	}
	s.Log.WithFields(logrus.Fields{"module": "documents", "quote": quoteID, "invoice": invoiceID}).
		Info("quote converted")
	return s.Get(ctx, billing.KindInvoice, invoiceID)
}

func (s *DocumentService) conflict(err error, kind billing.Kind, id uint) error {
	if errors.Is(err, errVersionConflict) {
		return fmt.Errorf("%s %d: %w", kind, id, billing.ErrConcurrencyConflict)
	}
	return err
}
