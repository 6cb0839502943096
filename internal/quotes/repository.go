package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

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
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, account_id, number, version, parent_quote_id, superseded_by, client_id, title, description,
issue_date, due_date, expiry_date, validity_days, currency,
global_discount_percent, global_discount_amount, global_tax_rate,
items_subtotal, global_discount, subtotal_after_global, tax_amount, total_amount,
status, priority, payment_terms, notes, internal_notes, terms, category, tags,
template_id, pdf_template_id, input_errors, accept_token_hash,
created_by, created_at, updated_at, sent_at, accepted_at, accepted_by,
rejected_at, rejected_by, rejection_reason, converted_at, invoice_id`

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q                                             Quote
		parent, successor, acceptedBy, rejectedBy     pgtype.Int8
		invoiceID                                     pgtype.Int8
		issue, due, expiry                            pgtype.Date
		discPct, discAmt, taxRate                     pgtype.Numeric
		subtotal, globalDisc, afterGlobal, tax, total pgtype.Numeric
		sentAt, acceptedAt, rejectedAt, convertedAt   pgtype.Timestamptz
		inputErrors                                   []byte
	)
	err := row.Scan(&q.ID, &q.AccountID, &q.Number, &q.Version, &parent, &successor, &q.ClientID, &q.Title, &q.Description,
		&issue, &due, &expiry, &q.ValidityDays, &q.Currency,
		&discPct, &discAmt, &taxRate,
		&subtotal, &globalDisc, &afterGlobal, &tax, &total,
		&q.Status, &q.Priority, &q.PaymentTerms, &q.Notes, &q.InternalNotes, &q.Terms, &q.Category, &q.Tags,
		&q.TemplateID, &q.PDFTemplateID, &inputErrors, &q.AcceptTokenHash,
		&q.CreatedBy, &q.CreatedAt, &q.UpdatedAt, &sentAt, &acceptedAt, &acceptedBy,
		&rejectedAt, &rejectedBy, &q.RejectionReason, &convertedAt, &invoiceID)
	if err != nil {
		return Quote{}, err
	}
	q.Currency = strings.TrimSpace(q.Currency)
	q.ParentQuoteID = db.Int8Ptr(parent)
	q.SupersededBy = db.Int8Ptr(successor)
	q.AcceptedBy = db.Int8Ptr(acceptedBy)
	q.RejectedBy = db.Int8Ptr(rejectedBy)
	q.InvoiceID = db.Int8Ptr(invoiceID)
	q.IssueDate = db.DateValue(issue)
	q.DueDate = db.DateValue(due)
	q.ExpiryDate = db.DateValue(expiry)
	q.GlobalDiscountPercent = db.Decimal(discPct)
	q.GlobalDiscountAmount = db.Decimal(discAmt)
	q.GlobalTaxRate = db.Decimal(taxRate)
	q.Totals = Totals{
		ItemsSubtotal:       db.Decimal(subtotal),
		GlobalDiscount:      db.Decimal(globalDisc),
		SubtotalAfterGlobal: db.Decimal(afterGlobal),
		TaxAmount:           db.Decimal(tax),
		TotalAmount:         db.Decimal(total),
	}
	q.SentAt = db.TimestampPtr(sentAt)
	q.AcceptedAt = db.TimestampPtr(acceptedAt)
	q.RejectedAt = db.TimestampPtr(rejectedAt)
	q.ConvertedAt = db.TimestampPtr(convertedAt)
	if len(inputErrors) > 0 {
		if err := json.Unmarshal(inputErrors, &q.InputErrors); err != nil {
			return Quote{}, fmt.Errorf("decode input errors: %w", err)
		}
	}
	return q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.items(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Items = items
	return &q, nil
}

func (r *repository) items(ctx context.Context, quoteID int64) ([]LineItem, error) {
	rows, err := r.db.Query(ctx, `SELECT id, sort_order, description, category, sku, quantity, unit_price,
discount_percent, discount_amount, tax_rate, optional, notes, after_discount, tax_amount, amount, input_errors
FROM quote_items WHERE quote_id = $1 ORDER BY sort_order, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var (
			item                               LineItem
			qty, price, discPct, discAmt, rate pgtype.Numeric
			after, tax, amount                 pgtype.Numeric
			inputErrors                        []byte
		)
		if err := rows.Scan(&item.ID, &item.SortOrder, &item.Description, &item.Category, &item.SKU,
			&qty, &price, &discPct, &discAmt, &rate, &item.Optional, &item.Notes,
			&after, &tax, &amount, &inputErrors); err != nil {
			return nil, err
		}
		item.Quantity = db.Decimal(qty)
		item.UnitPrice = db.Decimal(price)
		item.DiscountPercent = db.Decimal(discPct)
		item.DiscountAmount = db.Decimal(discAmt)
		item.TaxRate = db.Decimal(rate)
		item.AfterDiscount = db.Decimal(after)
		item.TaxAmount = db.Decimal(tax)
		item.Amount = db.Decimal(amount)
		if len(inputErrors) > 0 {
			if err := json.Unmarshal(inputErrors, &item.InputErrors); err != nil {
				return nil, fmt.Errorf("decode item input errors: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quote, int, error) {
	where := []string{"account_id = $1"}
	args := []interface{}{filter.AccountID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ClientID > 0 {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(number ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM quotes WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, clause, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *repository) Revisions(ctx context.Context, accountID int64, number string) ([]Quote, error) {
	rows, err := r.db.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE account_id = $1 AND number = $2 ORDER BY version`, accountID, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quote) (int64, error) {
	inputErrors, err := encodeErrors(q.InputErrors)
	if err != nil {
		return 0, err
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO quotes (account_id, number, version, parent_quote_id, client_id, title, description,
issue_date, due_date, expiry_date, validity_days, currency,
global_discount_percent, global_discount_amount, global_tax_rate,
items_subtotal, global_discount, subtotal_after_global, tax_amount, total_amount,
status, priority, payment_terms, notes, internal_notes, terms, category, tags,
template_id, pdf_template_id, input_errors, accept_token_hash, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35)
RETURNING id`,
		q.AccountID, q.Number, q.Version, db.Int8(q.ParentQuoteID), q.ClientID, q.Title, q.Description,
		db.Date(q.IssueDate), db.Date(q.DueDate), db.Date(q.ExpiryDate), q.ValidityDays, q.Currency,
		db.Numeric(q.GlobalDiscountPercent), db.Numeric(q.GlobalDiscountAmount), db.Numeric(q.GlobalTaxRate),
		db.Numeric(q.Totals.ItemsSubtotal), db.Numeric(q.Totals.GlobalDiscount), db.Numeric(q.Totals.SubtotalAfterGlobal),
		db.Numeric(q.Totals.TaxAmount), db.Numeric(q.Totals.TotalAmount),
		q.Status, q.Priority, q.PaymentTerms, q.Notes, q.InternalNotes, q.Terms, q.Category, tags,
		q.TemplateID, q.PDFTemplateID, inputErrors, q.AcceptTokenHash, q.CreatedBy, q.CreatedAt, q.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s version %d already exists", ErrInvalidTransition, q.Number, q.Version)
		}
		return 0, err
	}
	if err := r.replaceItems(ctx, id, q.Items); err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites the mutable columns when the row still has the expected
// status and no successor. The number and version are never touched after
// creation.
func (r *repository) Update(ctx context.Context, q Quote, expect Status) error {
	inputErrors, err := encodeErrors(q.InputErrors)
	if err != nil {
		return err
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = time.Now()
	}
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET client_id = $2, title = $3, description = $4,
issue_date = $5, due_date = $6, expiry_date = $7, validity_days = $8, currency = $9,
global_discount_percent = $10, global_discount_amount = $11, global_tax_rate = $12,
items_subtotal = $13, global_discount = $14, subtotal_after_global = $15, tax_amount = $16, total_amount = $17,
status = $18, priority = $19, payment_terms = $20, notes = $21, internal_notes = $22, terms = $23,
category = $24, tags = $25, template_id = $26, pdf_template_id = $27, input_errors = $28, accept_token_hash = $29,
updated_at = $30, sent_at = $31, accepted_at = $32, accepted_by = $33, rejected_at = $34, rejected_by = $35,
rejection_reason = $36, converted_at = $37, invoice_id = $38
WHERE id = $1 AND status = $39 AND superseded_by IS NULL`,
		q.ID, q.ClientID, q.Title, q.Description,
		db.Date(q.IssueDate), db.Date(q.DueDate), db.Date(q.ExpiryDate), q.ValidityDays, q.Currency,
		db.Numeric(q.GlobalDiscountPercent), db.Numeric(q.GlobalDiscountAmount), db.Numeric(q.GlobalTaxRate),
		db.Numeric(q.Totals.ItemsSubtotal), db.Numeric(q.Totals.GlobalDiscount), db.Numeric(q.Totals.SubtotalAfterGlobal),
		db.Numeric(q.Totals.TaxAmount), db.Numeric(q.Totals.TotalAmount),
		q.Status, q.Priority, q.PaymentTerms, q.Notes, q.InternalNotes, q.Terms,
		q.Category, tags, q.TemplateID, q.PDFTemplateID, inputErrors, q.AcceptTokenHash,
		q.UpdatedAt, db.Timestamp(q.SentAt), db.Timestamp(q.AcceptedAt), db.Int8(q.AcceptedBy),
		db.Timestamp(q.RejectedAt), db.Int8(q.RejectedBy),
		q.RejectionReason, db.Timestamp(q.ConvertedAt), db.Int8(q.InvoiceID),
		expect,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missing(ctx, q.ID, expect)
	}
	return r.replaceItems(ctx, q.ID, q.Items)
}

// missing tells a deleted quote apart from one whose status moved on.
func (r *repository) missing(ctx context.Context, id int64, expect Status) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quotes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return staleErr(id, expect)
}

func (r *repository) Supersede(ctx context.Context, id, successorID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET superseded_by = $2, accept_token_hash = '', updated_at = NOW()
WHERE id = $1 AND superseded_by IS NULL AND status <> 'draft'`, id, successorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quote %d already has a newer revision", ErrInvalidTransition, id)
	}
	return nil
}

func (r *repository) replaceItems(ctx context.Context, quoteID int64, items []LineItem) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID); err != nil {
		return err
	}
	for _, item := range items {
		inputErrors, err := encodeErrors(item.InputErrors)
		if err != nil {
			return err
		}
		_, err = r.db.Exec(ctx, `INSERT INTO quote_items (quote_id, id, sort_order, description, category, sku,
quantity, unit_price, discount_percent, discount_amount, tax_rate, optional, notes,
after_discount, tax_amount, amount, input_errors)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			quoteID, item.ID, item.SortOrder, item.Description, item.Category, item.SKU,
			db.Numeric(item.Quantity), db.Numeric(item.UnitPrice), db.Numeric(item.DiscountPercent),
			db.Numeric(item.DiscountAmount), db.Numeric(item.TaxRate), item.Optional, item.Notes,
			db.Numeric(item.AfterDiscount), db.Numeric(item.TaxAmount), db.Numeric(item.Amount), inputErrors)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", item.ID, err)
		}
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotes WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NextSequence increments the per-account yearly counter.
func (r *repository) NextSequence(ctx context.Context, accountID int64, year int) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `INSERT INTO quote_number_sequences (account_id, year, seq)
VALUES ($1, $2, 1)
ON CONFLICT (account_id, year) DO UPDATE SET seq = quote_number_sequences.seq + 1
RETURNING seq`, accountID, year).Scan(&seq)
	return seq, err
}

func (r *repository) RecordTransition(ctx context.Context, change StatusChange) error {
	at := change.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO quote_transitions (quote_id, from_status, to_status, actor_id, reason, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`, change.QuoteID, change.From, change.To, change.ActorID, change.Reason, at)
	return err
}

func (r *repository) Transitions(ctx context.Context, quoteID int64) ([]StatusChange, error) {
	rows, err := r.db.Query(ctx, `SELECT id, quote_id, from_status, to_status, actor_id, reason, occurred_at
FROM quote_transitions WHERE quote_id = $1 ORDER BY occurred_at, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.QuoteID, &c.From, &c.To, &c.ActorID, &c.Reason, &c.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListExpirable returns pending and sent quotes whose expiry date is before asOf.
func (r *repository) ListExpirable(ctx context.Context, asOf time.Time, limit int) ([]Quote, error) {
	rows, err := r.db.Query(ctx, `SELECT `+quoteColumns+` FROM quotes
WHERE status IN ('pending', 'sent') AND superseded_by IS NULL
  AND expiry_date IS NOT NULL AND expiry_date < $1
ORDER BY expiry_date, id LIMIT $2`, db.Date(asOf), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := r.items(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func encodeErrors(errs map[string]string) ([]byte, error) {
	if len(errs) == 0 {
		return nil, nil
	}
	return json.Marshal(errs)
}
