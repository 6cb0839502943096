package quotes

import (
	"bytes"
	"strconv"
	"time"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// NumberInput accepts a JSON number or string verbatim so that malformed
// values reach the calculator as input errors rather than decode failures.
type NumberInput string

// UnmarshalJSON keeps the raw token.
func (n *NumberInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(string(data)); err == nil {
		*n = NumberInput(unquoted)
		return nil
	}
	*n = NumberInput(data)
	return nil
}

func (n *NumberInput) raw() *string {
	if n == nil {
		return nil
	}
	s := string(*n)
	return &s
}

// ItemInput is the wire shape of a line edit.
type ItemInput struct {
	ID              string       `json:"id,omitempty" validate:"omitempty,max=64"`
	Description     *string      `json:"description,omitempty" validate:"omitempty,max=500"`
	Category        *string      `json:"category,omitempty" validate:"omitempty,max=100"`
	SKU             *string      `json:"sku,omitempty" validate:"omitempty,max=64"`
	Notes           *string      `json:"notes,omitempty"`
	Quantity        *NumberInput `json:"quantity,omitempty"`
	UnitPrice       *NumberInput `json:"unit_price,omitempty"`
	DiscountPercent *NumberInput `json:"discount_percent,omitempty"`
	DiscountAmount  *NumberInput `json:"discount_amount,omitempty"`
	TaxRate         *NumberInput `json:"tax_rate,omitempty"`
	Optional        *bool        `json:"optional,omitempty"`
	SortOrder       *int         `json:"sort_order,omitempty" validate:"omitempty,gte=0"`
}

// Patch converts the input into an ItemPatch.
func (in ItemInput) Patch() ItemPatch {
	return ItemPatch{
		Description:     in.Description,
		Category:        in.Category,
		SKU:             in.SKU,
		Notes:           in.Notes,
		Quantity:        in.Quantity.raw(),
		UnitPrice:       in.UnitPrice.raw(),
		DiscountPercent: in.DiscountPercent.raw(),
		DiscountAmount:  in.DiscountAmount.raw(),
		TaxRate:         in.TaxRate.raw(),
		Optional:        in.Optional,
		SortOrder:       in.SortOrder,
	}
}

func itemPatches(items []ItemInput) ([]ItemPatch, []string) {
	patches := make([]ItemPatch, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		patches = append(patches, item.Patch())
		ids = append(ids, item.ID)
	}
	return patches, ids
}

// CreateQuoteRequest is the payload for creating or previewing a quote.
type CreateQuoteRequest struct {
	ClientID      int64    `json:"client_id" validate:"gte=0"`
	Title         string   `json:"title" validate:"max=200"`
	Description   string   `json:"description"`
	IssueDate     string   `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate       string   `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	ValidityDays  int      `json:"validity_days" validate:"gte=0,lte=3650"`
	Currency      string   `json:"currency" validate:"omitempty,len=3,alpha"`
	Priority      Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	PaymentTerms  string   `json:"payment_terms" validate:"max=200"`
	Notes         string   `json:"notes"`
	InternalNotes string   `json:"internal_notes"`
	Terms         string   `json:"terms"`
	Category      string   `json:"category" validate:"max=100"`
	Tags          []string `json:"tags" validate:"max=20,dive,max=40"`
	TemplateID    string   `json:"template_id" validate:"omitempty,max=64"`
	PDFTemplateID string   `json:"pdf_template_id" validate:"omitempty,max=64"`

	GlobalDiscountPercent *NumberInput `json:"global_discount_percent,omitempty"`
	GlobalDiscountAmount  *NumberInput `json:"global_discount_amount,omitempty"`
	GlobalTaxRate         *NumberInput `json:"global_tax_rate,omitempty"`

	Items []ItemInput `json:"items" validate:"dive"`
}

func (r CreateQuoteRequest) header() (HeaderPatch, error) {
	p := HeaderPatch{
		Title:                 &r.Title,
		Description:           &r.Description,
		PaymentTerms:          nonEmpty(r.PaymentTerms),
		Notes:                 &r.Notes,
		InternalNotes:         &r.InternalNotes,
		Terms:                 nonEmpty(r.Terms),
		Category:              nonEmpty(r.Category),
		PDFTemplateID:         &r.PDFTemplateID,
		Currency:              nonEmpty(r.Currency),
		GlobalDiscountPercent: r.GlobalDiscountPercent.raw(),
		GlobalDiscountAmount:  r.GlobalDiscountAmount.raw(),
		GlobalTaxRate:         r.GlobalTaxRate.raw(),
	}
	if r.ClientID > 0 {
		p.ClientID = &r.ClientID
	}
	if r.Priority != "" {
		p.Priority = &r.Priority
	}
	if r.ValidityDays > 0 {
		p.ValidityDays = &r.ValidityDays
	}
	if r.Tags != nil {
		p.Tags = &r.Tags
	}
	if r.TemplateID != "" {
		// the template supplies these unless the caller overrides them
		if r.Title == "" {
			p.Title = nil
		}
		if r.Description == "" {
			p.Description = nil
		}
	}
	errs := FieldErrors{}
	p.IssueDate = optionalDate(errs, "issue_date", r.IssueDate)
	p.DueDate = optionalDate(errs, "due_date", r.DueDate)
	if len(errs) > 0 {
		return p, &ValidationError{Fields: errs}
	}
	return p, nil
}

// UpdateQuoteRequest is the payload for partial edits. Items, when present,
// replace the whole list.
type UpdateQuoteRequest struct {
	ClientID      *int64    `json:"client_id,omitempty" validate:"omitempty,gte=0"`
	Title         *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Description   *string   `json:"description,omitempty"`
	IssueDate     *string   `json:"issue_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DueDate       *string   `json:"due_date,omitempty"`
	ValidityDays  *int      `json:"validity_days,omitempty" validate:"omitempty,gte=0,lte=3650"`
	Currency      *string   `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Priority      *Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	PaymentTerms  *string   `json:"payment_terms,omitempty" validate:"omitempty,max=200"`
	Notes         *string   `json:"notes,omitempty"`
	InternalNotes *string   `json:"internal_notes,omitempty"`
	Terms         *string   `json:"terms,omitempty"`
	Category      *string   `json:"category,omitempty" validate:"omitempty,max=100"`
	Tags          *[]string `json:"tags,omitempty"`
	PDFTemplateID *string   `json:"pdf_template_id,omitempty" validate:"omitempty,max=64"`

	GlobalDiscountPercent *NumberInput `json:"global_discount_percent,omitempty"`
	GlobalDiscountAmount  *NumberInput `json:"global_discount_amount,omitempty"`
	GlobalTaxRate         *NumberInput `json:"global_tax_rate,omitempty"`

	Items *[]ItemInput `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

func (r UpdateQuoteRequest) header() (HeaderPatch, error) {
	p := HeaderPatch{
		ClientID:              r.ClientID,
		Title:                 r.Title,
		Description:           r.Description,
		ValidityDays:          r.ValidityDays,
		Currency:              r.Currency,
		Priority:              r.Priority,
		PaymentTerms:          r.PaymentTerms,
		Notes:                 r.Notes,
		InternalNotes:         r.InternalNotes,
		Terms:                 r.Terms,
		Category:              r.Category,
		Tags:                  r.Tags,
		PDFTemplateID:         r.PDFTemplateID,
		GlobalDiscountPercent: r.GlobalDiscountPercent.raw(),
		GlobalDiscountAmount:  r.GlobalDiscountAmount.raw(),
		GlobalTaxRate:         r.GlobalTaxRate.raw(),
	}
	errs := FieldErrors{}
	if r.IssueDate != nil {
		p.IssueDate = optionalDate(errs, "issue_date", *r.IssueDate)
	}
	if r.DueDate != nil {
		// an empty due date clears it so it tracks the expiry again
		due, err := ParseDate(*r.DueDate)
		if err != nil {
			errs["due_date"] = dateFormatMessage
		}
		p.DueDate = &due
	}
	if len(errs) > 0 {
		return p, &ValidationError{Fields: errs}
	}
	return p, nil
}

// EmailRequest customises an outgoing quote email.
type EmailRequest struct {
	To      []string `json:"to" validate:"omitempty,max=10,dive,email"`
	Subject string   `json:"subject" validate:"max=200"`
	Message string   `json:"message" validate:"max=5000"`
}

// RejectRequest carries the optional reason for a rejection.
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// RespondRequest is a client's answer through the public link.
type RespondRequest struct {
	Token    string `json:"token" validate:"required"`
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
	Reason   string `json:"reason" validate:"max=1000"`
}

// SaveTemplateRequest names a template captured from a quote.
type SaveTemplateRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// ListResponse is a page of quotes.
type ListResponse struct {
	Quotes     []Quote           `json:"quotes"`
	Pagination shared.Pagination `json:"pagination"`
}

// PreviewResponse carries a computed, unsaved quote and its problems.
type PreviewResponse struct {
	Quote  Quote       `json:"quote"`
	Errors FieldErrors `json:"errors,omitempty"`
}

// History lists a quote's revisions and its transitions.
type History struct {
	Revisions   []Quote        `json:"revisions"`
	Transitions []StatusChange `json:"transitions"`
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const dateFormatMessage = "must be a date in YYYY-MM-DD format"

func optionalDate(errs FieldErrors, field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := ParseDate(value)
	if err != nil {
		errs[field] = dateFormatMessage
		return nil
	}
	return &t
}
