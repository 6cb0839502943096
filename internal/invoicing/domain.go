// Package invoicing turns accepted quotes into draft invoices.
package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// Status of an invoice.
type Status string

// StatusDraft is the only status this package assigns; billing takes it from there.
const StatusDraft Status = "draft"

// Invoice is the billing document created from a quote.
type Invoice struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Number    string          `json:"number"`
	QuoteID   int64           `json:"quote_id"`
	ClientID  int64           `json:"client_id"`
	Currency  string          `json:"currency"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	IssuedAt  time.Time       `json:"issued_at"`
	DueAt     time.Time       `json:"due_at"`
	CreatedBy int64           `json:"created_by"`
	Lines     []Line          `json:"lines"`
}

// Line is one invoice row.
type Line struct {
	LineNo      int             `json:"line_no"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Amount      decimal.Decimal `json:"amount"`
	Optional    bool            `json:"optional"`
}

// FormatNumber renders an invoice number such as INV-2024-0007.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%04d-%04d", year, seq)
}

// FromQuote copies the priced lines and totals of q. Figures are recomputed
// so the invoice always matches the quote's own arithmetic.
func FromQuote(q quotes.Quote, issued time.Time) Invoice {
	q = quotes.Recalculate(q)
	scale := quotes.CurrencyScale(q.Currency)
	inv := Invoice{
		AccountID: q.AccountID,
		QuoteID:   q.ID,
		ClientID:  q.ClientID,
		Currency:  strings.ToUpper(q.Currency),
		Subtotal:  q.Totals.ItemsSubtotal,
		Discount:  q.Totals.GlobalDiscount,
		TaxAmount: q.Totals.TaxAmount,
		Total:     q.Totals.TotalAmount,
		Status:    StatusDraft,
		IssuedAt:  quotes.DateOnly(issued),
		DueAt:     q.DueDate,
		Lines:     make([]Line, 0, len(q.Items)),
	}
	for i, item := range q.Items {
		res := quotes.CalculateLine(quotes.LineInput{
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			DiscountAmount:  item.DiscountAmount,
			TaxRate:         item.TaxRate,
		}, scale)
		inv.Lines = append(inv.Lines, Line{
			LineNo:      i + 1,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    res.Gross.Sub(res.AfterDiscount),
			Amount:      res.AfterDiscount,
			Optional:    item.Optional,
		})
	}
	return inv
}
