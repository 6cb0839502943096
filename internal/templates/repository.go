// Package templates stores reusable quote skeletons.
package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// Repository persists templates in Postgres with their items as JSONB.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a template repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const templateColumns = `id, account_id, name, title, description, category, is_default, items, terms, payment_terms, validity_days`

func scanTemplate(row pgx.Row) (quotes.Template, error) {
	var (
		tpl   quotes.Template
		items []byte
	)
	err := row.Scan(&tpl.ID, &tpl.AccountID, &tpl.Name, &tpl.Title, &tpl.Description, &tpl.Category,
		&tpl.IsDefault, &items, &tpl.Terms, &tpl.PaymentTerms, &tpl.ValidityDays)
	if err != nil {
		return tpl, err
	}
	if err := json.Unmarshal(items, &tpl.Items); err != nil {
		return tpl, fmt.Errorf("decode template items: %w", err)
	}
	return tpl, nil
}

// ListTemplates returns an account's templates, defaults first.
func (r *Repository) ListTemplates(ctx context.Context, accountID int64) ([]quotes.Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+`
		FROM quote_templates
		WHERE account_id = $1
		ORDER BY is_default DESC, name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	out := []quotes.Template{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// GetTemplate loads one template.
func (r *Repository) GetTemplate(ctx context.Context, accountID int64, id string) (*quotes.Template, error) {
	tpl, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+`
		FROM quote_templates
		WHERE account_id = $1 AND id = $2`, accountID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", id, quotes.ErrNotFound)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &tpl, nil
}

// SaveTemplate inserts a template, or replaces it when the id exists.
func (r *Repository) SaveTemplate(ctx context.Context, tpl quotes.Template) (*quotes.Template, error) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.Name = strings.TrimSpace(tpl.Name)
	if tpl.Items == nil {
		tpl.Items = []quotes.TemplateItem{}
	}
	items, err := json.Marshal(tpl.Items)
	if err != nil {
		return nil, fmt.Errorf("encode template items: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quote_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			is_default = EXCLUDED.is_default,
			items = EXCLUDED.items,
			terms = EXCLUDED.terms,
			payment_terms = EXCLUDED.payment_terms,
			validity_days = EXCLUDED.validity_days,
			updated_at = NOW()
		WHERE quote_templates.account_id = EXCLUDED.account_id`,
		tpl.ID, tpl.AccountID, tpl.Name, tpl.Title, tpl.Description, tpl.Category,
		tpl.IsDefault, items, tpl.Terms, tpl.PaymentTerms, tpl.ValidityDays)
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return &tpl, nil
}
