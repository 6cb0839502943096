// Package render lays out quotes as PDF documents.
package render

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// Issuer is the business named in the document header.
type Issuer struct {
	Name    string
	Address string
	Email   string
}

type quoteView struct {
	Issuer      Issuer
	Client      quotes.Client
	Number      string
	Version     int
	Title       string
	Description string
	IssueDate   string
	ValidUntil  string
	DueDate     string
	Lines       []lineView
	HasOptional bool

	Subtotal       string
	GlobalDiscount string
	HasDiscount    bool
	TaxLabel       string
	Tax            string
	Total          string

	PaymentTerms string
	Notes        string
	Terms        string
}

type lineView struct {
	Position    int
	Description string
	Notes       string
	Quantity    string
	UnitPrice   string
	Discount    string
	TaxRate     string
	Amount      string
	Optional    bool
}

// moneyFormatter prints amounts in a currency with locale grouping.
type moneyFormatter struct {
	printer *message.Printer
	unit    currency.Unit
	scale   int
	known   bool
}

func newMoneyFormatter(code string, tag language.Tag) moneyFormatter {
	f := moneyFormatter{printer: message.NewPrinter(tag), scale: int(quotes.CurrencyScale(code))}
	if unit, err := currency.ParseISO(code); err == nil {
		f.unit = unit
		f.known = true
	}
	return f
}

func (f moneyFormatter) format(amount decimal.Decimal) string {
	value, _ := amount.Round(int32(f.scale)).Float64()
	n := f.printer.Sprint(number.Decimal(value, number.Scale(f.scale)))
	if !f.known {
		return n
	}
	return f.printer.Sprint(currency.Symbol(f.unit)) + " " + n
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2 January 2006")
}

func percent(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String() + "%"
}

func buildView(doc quotes.Document, issuer Issuer, tag language.Tag) quoteView {
	q := quotes.Recalculate(doc.Quote)
	money := newMoneyFormatter(q.Currency, tag)

	v := quoteView{
		Issuer:         issuer,
		Client:         doc.Client,
		Number:         q.Number,
		Version:        q.Version,
		Title:          q.Title,
		Description:    q.Description,
		IssueDate:      formatDate(q.IssueDate),
		ValidUntil:     formatDate(q.ExpiryDate),
		DueDate:        formatDate(q.DueDate),
		Subtotal:       money.format(q.Totals.ItemsSubtotal),
		GlobalDiscount: money.format(q.Totals.GlobalDiscount),
		HasDiscount:    q.Totals.GlobalDiscount.IsPositive(),
		Tax:            money.format(q.Totals.TaxAmount),
		Total:          money.format(q.Totals.TotalAmount),
		PaymentTerms:   q.PaymentTerms,
		Notes:          q.Notes,
		Terms:          q.Terms,
		TaxLabel:       "Tax",
	}
	if !q.GlobalTaxRate.IsZero() {
		v.TaxLabel = "Tax (" + q.GlobalTaxRate.String() + "%)"
	}
	for i, item := range q.Items {
		discount := percent(item.DiscountPercent)
		if item.DiscountAmount.IsPositive() {
			amount := money.format(item.DiscountAmount)
			if discount != "" {
				discount += " + " + amount
			} else {
				discount = amount
			}
		}
		v.Lines = append(v.Lines, lineView{
			Position:    i + 1,
			Description: strings.TrimSpace(item.Description),
			Notes:       item.Notes,
			Quantity:    item.Quantity.String(),
			UnitPrice:   money.format(item.UnitPrice),
			Discount:    discount,
			TaxRate:     percent(item.TaxRate),
			Amount:      money.format(item.Amount),
			Optional:    item.Optional,
		})
		v.HasOptional = v.HasOptional || item.Optional
	}
	return v
}
