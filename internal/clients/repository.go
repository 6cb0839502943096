// Package clients is the directory of customers a quote can be addressed to.
package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// NewClient is the payload for registering a client.
type NewClient struct {
	AccountID int64  `json:"-"`
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Phone     string `json:"phone" validate:"max=50"`
	Address   string `json:"address" validate:"max=500"`
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository reads and writes clients in Postgres and serves as the quote
// service's client directory.
type Repository struct {
	db dbtx
}

// NewRepository constructs a client repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var _ quotes.ClientDirectory = (*Repository)(nil)

// ListClients returns active clients of an account ordered by name.
func (r *Repository) ListClients(ctx context.Context, filter quotes.ClientFilter) ([]quotes.Client, error) {
	conditions := []string{"account_id = $1", "is_active"}
	args := []interface{}{filter.AccountID}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT id, name, email, phone, address
		FROM clients
		WHERE %s
		ORDER BY name, id
		LIMIT $%d`, strings.Join(conditions, " AND "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	out := []quotes.Client{}
	for rows.Next() {
		var c quotes.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClient loads one client of an account.
func (r *Repository) GetClient(ctx context.Context, accountID, id int64) (*quotes.Client, error) {
	var c quotes.Client
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, phone, address
		FROM clients
		WHERE account_id = $1 AND id = $2`, accountID, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", id, quotes.ErrNotFound)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// CreateClient inserts a client and returns it.
func (r *Repository) CreateClient(ctx context.Context, in NewClient) (*quotes.Client, error) {
	c := quotes.Client{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO clients (account_id, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, in.AccountID, c.Name, c.Email, c.Phone, c.Address).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &c, nil
}
