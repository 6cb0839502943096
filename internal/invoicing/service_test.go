package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

type memoryRepo struct {
	invoices  map[int64]Invoice
	sequences map[int]int64
	createErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: map[int64]Invoice{}, sequences: map[int]int64{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) FindByQuote(ctx context.Context, quoteID int64) (*Invoice, error) {
	for _, inv := range m.invoices {
		if inv.QuoteID == quoteID {
			return &inv, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) NextSequence(ctx context.Context, accountID int64, year int) (int64, error) {
	m.sequences[year]++
	return m.sequences[year], nil
}

func (m *memoryRepo) Create(ctx context.Context, inv Invoice) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	inv.ID = int64(len(m.invoices) + 1)
	m.invoices[inv.ID] = inv
	return inv.ID, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func acceptedQuote() quotes.Quote {
	by := int64(5)
	return quotes.Quote{
		ID:                    11,
		AccountID:             1,
		Number:                "QUO-2024-001",
		ClientID:              7,
		Currency:              "eur",
		Status:                quotes.StatusAccepted,
		AcceptedBy:            &by,
		IssueDate:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:               time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		GlobalDiscountPercent: d("10"),
		GlobalTaxRate:         d("22"),
		Items: []quotes.LineItem{
			{ID: "a", Description: "Design", Quantity: d("2"), UnitPrice: d("100"), DiscountPercent: d("10"), TaxRate: d("22")},
			{ID: "b", Description: "Hosting", Quantity: d("1"), UnitPrice: d("20"), Optional: true},
		},
	}
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return time.Date(2024, 2, 3, 15, 0, 0, 0, time.UTC) }
	return svc
}

func TestFromQuoteCopiesTotals(t *testing.T) {
	inv := FromQuote(acceptedQuote(), time.Date(2024, 2, 3, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, "200", inv.Subtotal.String())
	assert.Equal(t, "20", inv.Discount.String())
	assert.Equal(t, "39.6", inv.TaxAmount.String())
	assert.Equal(t, "219.6", inv.Total.String())
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), inv.IssuedAt)

	require.Len(t, inv.Lines, 2)
	assert.Equal(t, "20", inv.Lines[0].Discount.String())
	assert.Equal(t, "180", inv.Lines[0].Amount.String())
	assert.True(t, inv.Lines[1].Optional)
}

func TestCreateInvoiceFromQuoteNumbersSequentially(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	ref, err := svc.CreateInvoiceFromQuote(context.Background(), acceptedQuote())
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-0001", ref.Number)
	assert.Equal(t, int64(5), repo.invoices[ref.ID].CreatedBy)

	other := acceptedQuote()
	other.ID = 12
	ref, err = svc.CreateInvoiceFromQuote(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-0002", ref.Number)
}

func TestCreateInvoiceFromQuoteIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	first, err := svc.CreateInvoiceFromQuote(context.Background(), acceptedQuote())
	require.NoError(t, err)
	second, err := svc.CreateInvoiceFromQuote(context.Background(), acceptedQuote())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, repo.invoices, 1)
}

func TestCreateInvoiceFromQuoteRejectsUnaccepted(t *testing.T) {
	q := acceptedQuote()
	q.Status = quotes.StatusSent
	_, err := newTestService(newMemoryRepo()).CreateInvoiceFromQuote(context.Background(), q)
	assert.Error(t, err)
}

func TestCreateInvoiceFromQuotePropagatesStorageErrors(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = errors.New("disk full")
	_, err := newTestService(repo).CreateInvoiceFromQuote(context.Background(), acceptedQuote())
	assert.ErrorContains(t, err, "disk full")
}
