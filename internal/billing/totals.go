package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType says how Discount.Value is interpreted.
type DiscountType string

const (
	DiscountAmount  DiscountType = "amount"
	DiscountPercent DiscountType = "percent"
)

// Discount is a document-level reduction, either absolute or a percentage of the subtotal.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// LineItem is one quantity × unit price entry of a document.
type LineItem struct {
	Name        string
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
}

// Total returns quantity × unit price.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Modifiers are the document-level inputs of ComputeTotals.
type Modifiers struct {
	Currency string
	TaxRate  decimal.Decimal // percent, 0-100
	Discount Discount
	Credit   decimal.Decimal
}

// WarningWrittenOff flags totals clamped to zero because discount and credit exceed subtotal plus tax.
const WarningWrittenOff = "written_off"

// Warning is a non-fatal condition raised while computing totals.
type Warning struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Totals is the result of ComputeTotals.
// SubTotal + TaxTotal - DiscountTotal - CreditApplied == Total, and Total >= 0.
type Totals struct {
	SubTotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	CreditApplied decimal.Decimal
	Total         decimal.Decimal
	Warnings      []Warning
}

// WrittenOff returns the amount of discount and credit that could not be applied.
func (t Totals) WrittenOff() decimal.Decimal {
	for _, w := range t.Warnings {
		if w.Code == WarningWrittenOff {
			return w.Amount
		}
	}
	return decimal.Zero
}

// ComputeTotals aggregates line items and document modifiers into totals.
// It is pure: the same inputs always produce identical results.
func ComputeTotals(items []LineItem, m Modifiers) (Totals, error) {
	currency := NormalizeCurrency(m.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	verr := &ValidationError{}
	if !ValidCurrency(currency) {
		verr.Add("currency", "invalid")
	}

	subTotal := decimal.Zero
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if it.Quantity < 0 {
			verr.Add(field+".quantity", "must_not_be_negative")
		}
		switch {
		case it.UnitPrice.IsNegative():
			verr.Add(field+".unitPrice", "must_not_be_negative")
		case !FitsMinorUnit(it.UnitPrice, currency):
			verr.Add(field+".unitPrice", "too_many_decimals")
		}
		subTotal = subTotal.Add(it.Total())
	}

	switch {
	case m.TaxRate.IsNegative() || m.TaxRate.GreaterThan(hundred):
		verr.Add("taxRate", "out_of_range")
	case !fitsRateScale(m.TaxRate):
		verr.Add("taxRate", "too_many_decimals")
	}

	discountTotal := decimal.Zero
	switch m.Discount.Type {
	case DiscountPercent:
		switch {
		case m.Discount.Value.IsNegative() || m.Discount.Value.GreaterThan(hundred):
			verr.Add("discount", "out_of_range")
		case !fitsRateScale(m.Discount.Value):
			verr.Add("discount", "too_many_decimals")
		default:
			discountTotal = RoundMoney(subTotal.Mul(m.Discount.Value).Div(hundred), currency)
		}
	case DiscountAmount, "":
		switch {
		case m.Discount.Value.IsNegative():
			verr.Add("discount", "must_not_be_negative")
		case !FitsMinorUnit(m.Discount.Value, currency):
			verr.Add("discount", "too_many_decimals")
		default:
			discountTotal = m.Discount.Value
		}
	default:
		verr.Add("discountType", "invalid")
	}

	switch {
	case m.Credit.IsNegative():
		verr.Add("credit", "must_not_be_negative")
	case !FitsMinorUnit(m.Credit, currency):
		verr.Add("credit", "too_many_decimals")
	}

	if err := verr.OrNil(); err != nil {
		return Totals{}, err
	}

	taxTotal := RoundMoney(subTotal.Mul(m.TaxRate).Div(hundred), currency)
	gross := subTotal.Add(taxTotal)

	afterDiscount := gross.Sub(discountTotal)
	if afterDiscount.IsNegative() {
		afterDiscount = decimal.Zero
	}
	creditApplied := decimal.Min(m.Credit, afterDiscount)

	t := Totals{
		SubTotal:      subTotal,
		TaxTotal:      taxTotal,
		DiscountTotal: discountTotal,
		CreditApplied: creditApplied,
		Total:         afterDiscount.Sub(creditApplied),
	}
	if excess := discountTotal.Add(m.Credit).Sub(gross); excess.IsPositive() {
		t.Warnings = append(t.Warnings, Warning{Code: WarningWrittenOff, Amount: excess})
	}
	return t, nil
}

// RateScale is the number of decimals a stored percentage keeps.
const RateScale = 4

func fitsRateScale(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(RateScale))
}

// Claimed holds totals a caller supplied alongside its items. Nil fields are not checked.
type Claimed struct {
	SubTotal *decimal.Decimal
	TaxTotal *decimal.Decimal
	Total    *decimal.Decimal
}

// Verify rejects claimed totals that differ from the computed ones.
func (c Claimed) Verify(t Totals) error {
	verr := &ValidationError{}
	check := func(field string, claimed *decimal.Decimal, actual decimal.Decimal) {
		if claimed != nil && !claimed.Equal(actual) {
			verr.Add(field, "mismatch")
		}
	}
	check("subTotal", c.SubTotal, t.SubTotal)
	check("taxTotal", c.TaxTotal, t.TaxTotal)
	check("total", c.Total, t.Total)
	return verr.OrNil()
}
