package quotes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates quote lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSent, StatusAccepted, StatusRejected, StatusExpired, StatusConverted:
		return true
	}
	return false
}

// Priority ranks quotes for follow-up.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether the priority is known.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// LineItem is one priced row of a quote. AfterDiscount, TaxAmount and Amount
// are derived and only written by CalculateLine.
type LineItem struct {
	ID              string            `json:"id"`
	SortOrder       int               `json:"sort_order"`
	Description     string            `json:"description"`
	Category        string            `json:"category,omitempty"`
	SKU             string            `json:"sku,omitempty"`
	Quantity        decimal.Decimal   `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
	DiscountAmount  decimal.Decimal   `json:"discount_amount"`
	TaxRate         decimal.Decimal   `json:"tax_rate"`
	Optional        bool              `json:"optional"`
	Notes           string            `json:"notes,omitempty"`
	AfterDiscount   decimal.Decimal   `json:"after_discount"`
	TaxAmount       decimal.Decimal   `json:"tax_amount"`
	Amount          decimal.Decimal   `json:"amount"`
	InputErrors     map[string]string `json:"input_errors,omitempty"`
	Clamped         bool              `json:"-"`
}

// Totals holds the quote-level aggregate figures.
type Totals struct {
	ItemsSubtotal       decimal.Decimal `json:"items_subtotal"`
	GlobalDiscount      decimal.Decimal `json:"global_discount"`
	SubtotalAfterGlobal decimal.Decimal `json:"subtotal_after_global"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Clamped             bool            `json:"-"`
}

// Quote is a commercial offer made to a client.
type Quote struct {
	ID            int64  `json:"id"`
	AccountID     int64  `json:"account_id"`
	Number        string `json:"number"`
	Version       int    `json:"version"`
	ParentQuoteID *int64 `json:"parent_quote_id,omitempty"`
	SupersededBy  *int64 `json:"superseded_by,omitempty"`

	ClientID    int64  `json:"client_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	IssueDate    time.Time `json:"issue_date"`
	DueDate      time.Time `json:"due_date"`
	ExpiryDate   time.Time `json:"expiry_date"`
	ValidityDays int       `json:"validity_days"`
	Currency     string    `json:"currency"`

	GlobalDiscountPercent decimal.Decimal `json:"global_discount_percent"`
	GlobalDiscountAmount  decimal.Decimal `json:"global_discount_amount"`
	GlobalTaxRate         decimal.Decimal `json:"global_tax_rate"`

	Items  []LineItem `json:"items"`
	Totals Totals     `json:"totals"`

	Status        Status   `json:"status"`
	Priority      Priority `json:"priority"`
	PaymentTerms  string   `json:"payment_terms,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	InternalNotes string   `json:"internal_notes,omitempty"`
	Terms         string   `json:"terms,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	TemplateID    string   `json:"template_id,omitempty"`
	PDFTemplateID string   `json:"pdf_template_id,omitempty"`

	InputErrors     map[string]string `json:"input_errors,omitempty"`
	AcceptTokenHash string            `json:"-"`

	CreatedBy       int64      `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy      *int64     `json:"accepted_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *int64     `json:"rejected_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ConvertedAt     *time.Time `json:"converted_at,omitempty"`
	InvoiceID       *int64     `json:"invoice_id,omitempty"`
}

// Editable reports whether header fields and items may still change.
func (q Quote) Editable() bool {
	return q.Status == StatusDraft
}

// Item returns the index of the item with the given id, or -1.
func (q Quote) Item(id string) int {
	for i := range q.Items {
		if q.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so edits never alias the caller's slices or maps.
func (q Quote) Clone() Quote {
	out := q
	if q.Items != nil {
		out.Items = make([]LineItem, len(q.Items))
		for i, item := range q.Items {
			item.InputErrors = cloneErrors(item.InputErrors)
			out.Items[i] = item
		}
	}
	if q.Tags != nil {
		out.Tags = append([]string(nil), q.Tags...)
	}
	out.InputErrors = cloneErrors(q.InputErrors)
	return out
}

func cloneErrors(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// StatusChange records one lifecycle transition.
type StatusChange struct {
	ID         int64     `json:"id"`
	QuoteID    int64     `json:"quote_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	ActorID    int64     `json:"actor_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Client is the minimal view of a client the engine needs.
type Client struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// ClientFilter narrows client directory lookups.
type ClientFilter struct {
	AccountID int64
	Search    string
	Limit     int
}

// TemplateItem is a line skeleton stored on a template. An unset quantity
// becomes 1 and an unset tax rate follows the quote's rate when applied; an
// explicit zero is kept.
type TemplateItem struct {
	Description     string              `json:"description"`
	Category        string              `json:"category,omitempty"`
	SKU             string              `json:"sku,omitempty"`
	Quantity        decimal.NullDecimal `json:"quantity"`
	UnitPrice       decimal.Decimal     `json:"unit_price"`
	DiscountPercent decimal.Decimal     `json:"discount_percent"`
	TaxRate         decimal.NullDecimal `json:"tax_rate"`
	Optional        bool                `json:"optional"`
	Notes           string              `json:"notes,omitempty"`
}

// Template is a reusable quote skeleton.
type Template struct {
	ID           string         `json:"id"`
	AccountID    int64          `json:"account_id"`
	Name         string         `json:"name"`
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	IsDefault    bool           `json:"is_default"`
	Items        []TemplateItem `json:"items"`
	Terms        string         `json:"terms,omitempty"`
	PaymentTerms string         `json:"payment_terms,omitempty"`
	ValidityDays int            `json:"validity_days,omitempty"`
}

// InvoiceRef identifies the invoice produced by conversion.
type InvoiceRef struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

// Document bundles what a renderer needs to lay out a quote.
type Document struct {
	Quote  Quote
	Client Client
}

// Attachment is a file carried by an outgoing email.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Email is the payload handed to the mailer.
type Email struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ListFilter narrows quote listings.
type ListFilter struct {
	AccountID int64
	Status    Status
	ClientID  int64
	Search    string
	Limit     int
	Offset    int
}

// FormOptions feeds the quote editor dropdowns.
type FormOptions struct {
	Clients      []Client   `json:"clients"`
	Templates    []Template `json:"templates"`
	PDFTemplates []string   `json:"pdf_templates"`
	Currencies   []string   `json:"currencies"`
	Priorities   []Priority `json:"priorities"`
}
