package quotes

import (
	"context"
	"time"

	"github.com/odyssey-erp/quotedesk/internal/audit"
)

// Repository defines persistence operations for quotes.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, int, error)
	Revisions(ctx context.Context, accountID int64, number string) ([]Quote, error)
	Create(ctx context.Context, q Quote) (int64, error)
	// Update stores q only while the stored row still has status expect and
	// no successor revision; otherwise it returns ErrInvalidTransition.
	Update(ctx context.Context, q Quote, expect Status) error
	// Supersede links a quote to its successor revision and revokes its
	// response token. A quote can be superseded once.
	Supersede(ctx context.Context, id, successorID int64) error
	Delete(ctx context.Context, id int64) error

	NextSequence(ctx context.Context, accountID int64, year int) (int64, error)
	RecordTransition(ctx context.Context, change StatusChange) error
	Transitions(ctx context.Context, quoteID int64) ([]StatusChange, error)
	ListExpirable(ctx context.Context, asOf time.Time, limit int) ([]Quote, error)
}

// ClientDirectory looks up clients for selection and addressing.
type ClientDirectory interface {
	ListClients(ctx context.Context, filter ClientFilter) ([]Client, error)
	GetClient(ctx context.Context, accountID, id int64) (*Client, error)
}

// TemplateStore holds reusable quote skeletons keyed by id.
type TemplateStore interface {
	ListTemplates(ctx context.Context, accountID int64) ([]Template, error)
	GetTemplate(ctx context.Context, accountID int64, id string) (*Template, error)
	SaveTemplate(ctx context.Context, tpl Template) (*Template, error)
}

// Renderer turns a quote into a PDF using a named layout.
type Renderer interface {
	RenderPDF(ctx context.Context, doc Document, templateID string) ([]byte, error)
	Layouts() []string
}

// Mailer dispatches outgoing email.
type Mailer interface {
	SendEmail(ctx context.Context, email Email) error
}

// Invoicer creates an invoice from an accepted quote.
type Invoicer interface {
	CreateInvoiceFromQuote(ctx context.Context, q Quote) (InvoiceRef, error)
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}
