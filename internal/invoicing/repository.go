package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// Repository provides Postgres backed persistence for invoices.
type Repository struct {
	db   dbtx
	pool *pgxpool.Pool
	inTx bool
}

// NewRepository constructs the invoice repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx, pool: r.pool, inTx: true})
	})
}

// FindByQuote returns the invoice created from a quote.
func (r *Repository) FindByQuote(ctx context.Context, quoteID int64) (*Invoice, error) {
	var (
		inv                            Invoice
		subtotal, discount, tax, total pgtype.Numeric
		issued, due                    pgtype.Date
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, account_id, number, quote_id, client_id, currency,
		       subtotal, discount, tax_amount, total, status, issued_at, due_at, created_by
		FROM invoices
		WHERE quote_id = $1`, quoteID).Scan(
		&inv.ID, &inv.AccountID, &inv.Number, &inv.QuoteID, &inv.ClientID, &inv.Currency,
		&subtotal, &discount, &tax, &total, &inv.Status, &issued, &due, &inv.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find invoice by quote: %w", err)
	}
	inv.Subtotal = db.Decimal(subtotal)
	inv.Discount = db.Decimal(discount)
	inv.TaxAmount = db.Decimal(tax)
	inv.Total = db.Decimal(total)
	inv.IssuedAt = db.DateValue(issued)
	inv.DueAt = db.DateValue(due)
	return &inv, nil
}

// NextSequence reserves the next invoice sequence for an account and year.
func (r *Repository) NextSequence(ctx context.Context, accountID int64, year int) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_number_sequences (account_id, year, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (account_id, year) DO UPDATE SET seq = invoice_number_sequences.seq + 1
		RETURNING seq`, accountID, year).Scan(&seq)
	return seq, err
}

// Create inserts the invoice header and its lines.
func (r *Repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoices (account_id, number, quote_id, client_id, currency,
		                      subtotal, discount, tax_amount, total, status, issued_at, due_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		inv.AccountID, inv.Number, inv.QuoteID, inv.ClientID, inv.Currency,
		db.Numeric(inv.Subtotal), db.Numeric(inv.Discount), db.Numeric(inv.TaxAmount), db.Numeric(inv.Total),
		inv.Status, db.Date(inv.IssuedAt), db.Date(inv.DueAt), inv.CreatedBy).Scan(&id)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, line := range inv.Lines {
		batch.Queue(`
			INSERT INTO invoice_lines (invoice_id, line_no, description, quantity, unit_price, discount, amount, optional)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, line.LineNo, line.Description, db.Numeric(line.Quantity), db.Numeric(line.UnitPrice),
			db.Numeric(line.Discount), db.Numeric(line.Amount), line.Optional)
	}
	if batch.Len() == 0 {
		return id, nil
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert invoice lines: %w", err)
	}
	return id, nil
}
