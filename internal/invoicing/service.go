package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// ErrNotFound indicates no invoice exists for the lookup.
var ErrNotFound = errors.New("invoicing: not found")

// RepositoryPort defines data access for invoices.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	FindByQuote(ctx context.Context, quoteID int64) (*Invoice, error)
	NextSequence(ctx context.Context, accountID int64, year int) (int64, error)
	Create(ctx context.Context, inv Invoice) (int64, error)
}

// Service creates invoices from accepted quotes.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

var _ quotes.Invoicer = (*Service)(nil)

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger.With(slog.String("component", "invoicing")), now: time.Now}
}

// CreateInvoiceFromQuote creates a draft invoice for q. A quote converts to
// exactly one invoice: a retry after a partial failure returns the invoice
// created the first time.
func (s *Service) CreateInvoiceFromQuote(ctx context.Context, q quotes.Quote) (quotes.InvoiceRef, error) {
	if q.ID == 0 {
		return quotes.InvoiceRef{}, errors.New("invoicing: quote id required")
	}
	if q.Status != quotes.StatusAccepted && q.Status != quotes.StatusConverted {
		return quotes.InvoiceRef{}, fmt.Errorf("invoicing: quote %s is %s, not accepted", q.Number, q.Status)
	}
	var ref quotes.InvoiceRef
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		existing, err := repo.FindByQuote(ctx, q.ID)
		if err == nil {
			ref = quotes.InvoiceRef{ID: existing.ID, Number: existing.Number}
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		inv := FromQuote(q, s.now())
		inv.CreatedBy = actorOf(q)
		seq, err := repo.NextSequence(ctx, inv.AccountID, inv.IssuedAt.Year())
		if err != nil {
			return fmt.Errorf("next invoice number: %w", err)
		}
		inv.Number = FormatNumber(inv.IssuedAt.Year(), seq)
		id, err := repo.Create(ctx, inv)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		ref = quotes.InvoiceRef{ID: id, Number: inv.Number}
		s.logger.InfoContext(ctx, "invoice created",
			slog.Int64("invoice_id", id), slog.String("number", inv.Number), slog.Int64("quote_id", q.ID))
		return nil
	})
	if err != nil {
		return quotes.InvoiceRef{}, err
	}
	return ref, nil
}

func actorOf(q quotes.Quote) int64 {
	if q.AcceptedBy != nil && *q.AcceptedBy > 0 {
		return *q.AcceptedBy
	}
	return q.CreatedBy
}
