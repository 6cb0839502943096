package quotes

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults seeds new quotes for an issuing account.
type Defaults struct {
	Currency     string
	TaxRate      decimal.Decimal
	ValidityDays int
	Priority     Priority
	PaymentTerms string
	NumberPrefix string
}

// NewQuote returns a draft with one empty line and derived dates and totals.
func NewQuote(d Defaults, issueDate time.Time) Quote {
	validity := d.ValidityDays
	if validity <= 0 {
		validity = 30
	}
	priority := d.Priority
	if !priority.Valid() {
		priority = PriorityMedium
	}
	q := Quote{
		Version:       1,
		Status:        StatusDraft,
		Priority:      priority,
		Currency:      strings.ToUpper(d.Currency),
		GlobalTaxRate: d.TaxRate,
		ValidityDays:  validity,
		PaymentTerms:  d.PaymentTerms,
		IssueDate:     issueDate,
	}
	q.Items = []LineItem{NewLineItem(q, 1)}
	return Recalculate(DeriveDates(q))
}

// NewLineItem builds a blank line carrying the quote's current tax rate.
func NewLineItem(q Quote, sortOrder int) LineItem {
	return LineItem{
		ID:        newItemID(),
		SortOrder: sortOrder,
		Quantity:  decimal.NewFromInt(1),
		TaxRate:   q.GlobalTaxRate,
	}
}

// AddItem appends a blank line at the end of the list.
func AddItem(q Quote) (Quote, LineItem, error) {
	if !q.Editable() {
		return q, LineItem{}, ErrNotEditable
	}
	out := q.Clone()
	item := NewLineItem(out, nextSortOrder(out.Items))
	out.Items = append(out.Items, item)
	return Recalculate(out), item, nil
}

func nextSortOrder(items []LineItem) int {
	max := 0
	for _, item := range items {
		if item.SortOrder > max {
			max = item.SortOrder
		}
	}
	return max + 1
}

// RemoveItem drops a line. The last remaining line cannot be removed.
func RemoveItem(q Quote, itemID string) (Quote, error) {
	if !q.Editable() {
		return q, ErrNotEditable
	}
	idx := q.Item(itemID)
	if idx < 0 {
		return q, ErrItemNotFound
	}
	if len(q.Items) <= 1 {
		return q, ErrLastLineItem
	}
	out := q.Clone()
	out.Items = append(out.Items[:idx], out.Items[idx+1:]...)
	return Recalculate(out), nil
}

// ItemPatch carries user edits for one line. Numeric fields arrive raw so that
// non-numeric input can be reported instead of rejected outright.
type ItemPatch struct {
	Description     *string
	Category        *string
	SKU             *string
	Notes           *string
	Quantity        *string
	UnitPrice       *string
	DiscountPercent *string
	DiscountAmount  *string
	TaxRate         *string
	Optional        *bool
	SortOrder       *int
}

// PatchItem applies edits to one line and recomputes the quote.
func PatchItem(q Quote, itemID string, p ItemPatch) (Quote, error) {
	if !q.Editable() {
		return q, ErrNotEditable
	}
	idx := q.Item(itemID)
	if idx < 0 {
		return q, ErrItemNotFound
	}
	out := q.Clone()
	out.Items[idx] = patchLine(out.Items[idx], p)
	return Recalculate(out), nil
}

func patchLine(item LineItem, p ItemPatch) LineItem {
	setText(&item.Description, p.Description)
	setText(&item.Category, p.Category)
	setText(&item.SKU, p.SKU)
	setText(&item.Notes, p.Notes)
	if p.Optional != nil {
		item.Optional = *p.Optional
	}
	if p.SortOrder != nil {
		item.SortOrder = *p.SortOrder
	}
	item.InputErrors = setNumber(item.InputErrors, "quantity", &item.Quantity, p.Quantity)
	item.InputErrors = setNumber(item.InputErrors, "unit_price", &item.UnitPrice, p.UnitPrice)
	item.InputErrors = setNumber(item.InputErrors, "discount_percent", &item.DiscountPercent, p.DiscountPercent)
	item.InputErrors = setNumber(item.InputErrors, "discount_amount", &item.DiscountAmount, p.DiscountAmount)
	item.InputErrors = setNumber(item.InputErrors, "tax_rate", &item.TaxRate, p.TaxRate)
	return item
}

// ReplaceItems swaps the full item list, keeping ids the caller supplies and
// assigning new ones where missing.
func ReplaceItems(q Quote, patches []ItemPatch, ids []string) (Quote, error) {
	if !q.Editable() {
		return q, ErrNotEditable
	}
	if len(patches) == 0 {
		return q, ErrLastLineItem
	}
	out := q.Clone()
	out.Items = make([]LineItem, 0, len(patches))
	for i, p := range patches {
		item := NewLineItem(out, i+1)
		if i < len(ids) && ids[i] != "" {
			item.ID = ids[i]
		}
		out.Items = append(out.Items, patchLine(item, p))
	}
	return Recalculate(out), nil
}

// HeaderPatch carries edits to quote-level fields. A non-nil DueDate holding
// the zero time clears the due date so it follows the expiry again.
type HeaderPatch struct {
	ClientID      *int64
	Title         *string
	Description   *string
	IssueDate     *time.Time
	DueDate       *time.Time
	ValidityDays  *int
	Currency      *string
	Priority      *Priority
	PaymentTerms  *string
	Notes         *string
	InternalNotes *string
	Terms         *string
	Category      *string
	Tags          *[]string
	PDFTemplateID *string

	GlobalDiscountPercent *string
	GlobalDiscountAmount  *string
	GlobalTaxRate         *string
}

// ApplyHeader edits quote-level fields, then re-derives dates and totals.
func ApplyHeader(q Quote, p HeaderPatch) (Quote, error) {
	if !q.Editable() {
		return q, ErrNotEditable
	}
	out := q.Clone()
	if p.ClientID != nil {
		out.ClientID = *p.ClientID
	}
	setText(&out.Title, p.Title)
	setText(&out.Description, p.Description)
	setText(&out.PaymentTerms, p.PaymentTerms)
	setText(&out.Notes, p.Notes)
	setText(&out.InternalNotes, p.InternalNotes)
	setText(&out.Terms, p.Terms)
	setText(&out.Category, p.Category)
	setText(&out.PDFTemplateID, p.PDFTemplateID)
	if p.Currency != nil {
		out.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.IssueDate != nil {
		out.IssueDate = *p.IssueDate
	}
	if p.DueDate != nil {
		out.DueDate = *p.DueDate
	}
	if p.ValidityDays != nil {
		out.ValidityDays = *p.ValidityDays
	}
	out.InputErrors = setNumber(out.InputErrors, "global_discount_percent", &out.GlobalDiscountPercent, p.GlobalDiscountPercent)
	out.InputErrors = setNumber(out.InputErrors, "global_discount_amount", &out.GlobalDiscountAmount, p.GlobalDiscountAmount)
	out.InputErrors = setNumber(out.InputErrors, "global_tax_rate", &out.GlobalTaxRate, p.GlobalTaxRate)
	return Recalculate(DeriveDates(out)), nil
}

func setText(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// setNumber parses raw into dst. Non-numeric input stores zero and records a
// message under key; valid input clears any earlier message.
func setNumber(errs map[string]string, key string, dst *decimal.Decimal, raw *string) map[string]string {
	if raw == nil {
		return errs
	}
	value, msg := ParseNumber(*raw)
	*dst = value
	if msg == "" {
		delete(errs, key)
		if len(errs) == 0 {
			return nil
		}
		return errs
	}
	if errs == nil {
		errs = make(map[string]string)
	}
	errs[key] = msg
	return errs
}

// InputScale is the number of decimal places stored for entered quantities,
// prices, percentages and amounts.
const InputScale = 4

// ParseNumber reads a decimal rounded half-up to InputScale. Blank input is
// zero; anything unparsable is zero plus a message.
func ParseNumber(raw string) (decimal.Decimal, string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, "must be a number"
	}
	return d.Round(InputScale), ""
}
