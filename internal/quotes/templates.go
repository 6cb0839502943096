package quotes

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var newItemID = uuid.NewString

// ApplyTemplate copies a template's defaults and item skeletons onto q. The
// item list is replaced, never merged. Number, client and dates stay as they
// were, apart from the expiry which follows the template's validity.
func ApplyTemplate(q Quote, tpl Template) Quote {
	out := q.Clone()
	out.TemplateID = tpl.ID
	out.Title = tpl.Title
	out.Description = tpl.Description
	out.Terms = tpl.Terms
	if tpl.PaymentTerms != "" {
		out.PaymentTerms = tpl.PaymentTerms
	}
	if tpl.Category != "" {
		out.Category = tpl.Category
	}
	if tpl.ValidityDays > 0 {
		out.ValidityDays = tpl.ValidityDays
	}

	out.Items = make([]LineItem, 0, len(tpl.Items))
	for i, skel := range tpl.Items {
		qty := decimal.NewFromInt(1)
		if skel.Quantity.Valid {
			qty = skel.Quantity.Decimal.Round(InputScale)
		}
		rate := out.GlobalTaxRate
		if skel.TaxRate.Valid {
			rate = skel.TaxRate.Decimal.Round(InputScale)
		}
		out.Items = append(out.Items, LineItem{
			ID:              newItemID(),
			SortOrder:       i + 1,
			Description:     skel.Description,
			Category:        skel.Category,
			SKU:             skel.SKU,
			Quantity:        qty,
			UnitPrice:       skel.UnitPrice.Round(InputScale),
			DiscountPercent: skel.DiscountPercent.Round(InputScale),
			TaxRate:         rate,
			Optional:        skel.Optional,
			Notes:           skel.Notes,
		})
	}
	if len(out.Items) == 0 {
		out.Items = append(out.Items, NewLineItem(out, 1))
	}
	return Recalculate(DeriveDates(out))
}

// TemplateFromQuote captures a quote's content as a reusable skeleton.
func TemplateFromQuote(q Quote, name string) Template {
	tpl := Template{
		AccountID:    q.AccountID,
		Name:         name,
		Title:        q.Title,
		Description:  q.Description,
		Category:     q.Category,
		Terms:        q.Terms,
		PaymentTerms: q.PaymentTerms,
		ValidityDays: q.ValidityDays,
		Items:        make([]TemplateItem, 0, len(q.Items)),
	}
	for _, item := range q.Items {
		tpl.Items = append(tpl.Items, TemplateItem{
			Description:     item.Description,
			Category:        item.Category,
			SKU:             item.SKU,
			Quantity:        decimal.NewNullDecimal(item.Quantity),
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TaxRate:         decimal.NewNullDecimal(item.TaxRate),
			Optional:        item.Optional,
			Notes:           item.Notes,
		})
	}
	return tpl
}
