package quotes

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultScale is used when a currency code cannot be resolved.
const DefaultScale int32 = 2

var hundred = decimal.NewFromInt(100)

// CurrencyScale returns the number of minor-unit digits for an ISO 4217 code.
func CurrencyScale(code string) int32 {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return DefaultScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// LineInput carries the raw pricing fields of a line.
type LineInput struct {
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
}

// LineResult carries the derived figures of a line.
type LineResult struct {
	Gross         decimal.Decimal
	Discount      decimal.Decimal
	AfterDiscount decimal.Decimal
	TaxAmount     decimal.Decimal
	Amount        decimal.Decimal
	Clamped       bool
}

// CalculateLine prices a single line. A discount larger than the gross amount
// clamps the after-discount value to zero and flags the result.
func CalculateLine(in LineInput, scale int32) LineResult {
	return calculateLine(in, scale, true)
}

// CalculateLineRaw prices a line without clamping, so negative results pass
// through unchanged.
func CalculateLineRaw(in LineInput, scale int32) LineResult {
	return calculateLine(in, scale, false)
}

func calculateLine(in LineInput, scale int32, clamp bool) LineResult {
	gross := in.Quantity.Mul(in.UnitPrice)
	discount := in.DiscountAmount.Add(gross.Mul(in.DiscountPercent).Div(hundred))
	after := gross.Sub(discount)

	res := LineResult{}
	if clamp && after.IsNegative() {
		after = decimal.Zero
		res.Clamped = true
	}

	res.Gross = gross.Round(scale)
	res.Discount = discount.Round(scale)
	res.AfterDiscount = after.Round(scale)
	res.TaxAmount = res.AfterDiscount.Mul(in.TaxRate).Div(hundred).Round(scale)
	res.Amount = res.AfterDiscount.Add(res.TaxAmount)
	return res
}

// ApplyLine writes the derived figures onto an item.
func ApplyLine(item LineItem, scale int32) LineItem {
	res := CalculateLine(LineInput{
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice,
		DiscountPercent: item.DiscountPercent,
		DiscountAmount:  item.DiscountAmount,
		TaxRate:         item.TaxRate,
	}, scale)
	item.AfterDiscount = res.AfterDiscount
	item.TaxAmount = res.TaxAmount
	item.Amount = res.Amount
	item.Clamped = res.Clamped
	return item
}

// GlobalAdjustments are the quote-level discount and tax inputs.
type GlobalAdjustments struct {
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
}

// Aggregate sums after-discount line values and applies the global discount
// and tax. Optional items count toward the totals.
func Aggregate(items []LineItem, adj GlobalAdjustments, scale int32) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.AfterDiscount)
	}
	subtotal = subtotal.Round(scale)

	discount := adj.DiscountAmount.Add(subtotal.Mul(adj.DiscountPercent).Div(hundred)).Round(scale)
	after := subtotal.Sub(discount)

	totals := Totals{ItemsSubtotal: subtotal, GlobalDiscount: discount}
	if after.IsNegative() {
		after = decimal.Zero
		totals.Clamped = true
	}
	totals.SubtotalAfterGlobal = after.Round(scale)
	totals.TaxAmount = totals.SubtotalAfterGlobal.Mul(adj.TaxRate).Div(hundred).Round(scale)
	totals.TotalAmount = totals.SubtotalAfterGlobal.Add(totals.TaxAmount)
	return totals
}

// Recalculate derives every line and the quote totals from the current inputs.
func Recalculate(q Quote) Quote {
	out := q.Clone()
	scale := CurrencyScale(out.Currency)
	for i := range out.Items {
		out.Items[i] = ApplyLine(out.Items[i], scale)
	}
	out.Totals = Aggregate(out.Items, GlobalAdjustments{
		DiscountPercent: out.GlobalDiscountPercent,
		DiscountAmount:  out.GlobalDiscountAmount,
		TaxRate:         out.GlobalTaxRate,
	}, scale)
	return out
}

// ClampedItems lists the ids of items whose discount exceeded their gross value.
func (q Quote) ClampedItems() []string {
	var ids []string
	for _, item := range q.Items {
		if item.Clamped {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
