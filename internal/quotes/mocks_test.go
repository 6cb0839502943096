package quotes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/quotedesk/internal/audit"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu          sync.Mutex
	quotes      map[int64]Quote
	transitions []StatusChange
	sequences   map[int64]int64
	nextID      int64

	txError     error
	updateError error
	// afterList runs once ListExpirable has taken its snapshot
	afterList func()
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		quotes:    make(map[int64]Quote),
		sequences: make(map[int64]int64),
		nextID:    1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	snapshot := make(map[int64]Quote, len(m.quotes))
	for k, v := range m.quotes {
		snapshot[k] = v
	}
	transitions := len(m.transitions)
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.quotes = snapshot
		m.transitions = m.transitions[:transitions]
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := q.Clone()
	return &out, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Quote, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quote
	for _, q := range m.quotes {
		if q.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		out = append(out, q.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *mockRepository) Revisions(ctx context.Context, accountID int64, number string) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quote
	for _, q := range m.quotes {
		if q.AccountID == accountID && q.Number == number {
			out = append(out, q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, q Quote) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.quotes {
		if existing.AccountID == q.AccountID && existing.Number == q.Number && existing.Version == q.Version {
			return 0, fmt.Errorf("%w: %s version %d already exists", ErrInvalidTransition, q.Number, q.Version)
		}
	}
	q.ID = m.nextID
	m.nextID++
	m.quotes[q.ID] = q.Clone()
	return q.ID, nil
}

func (m *mockRepository) Update(ctx context.Context, q Quote, expect Status) error {
	if m.updateError != nil {
		return m.updateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.quotes[q.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status != expect || existing.SupersededBy != nil {
		return staleErr(q.ID, expect)
	}
	q.Number = existing.Number
	q.Version = existing.Version
	q.SupersededBy = existing.SupersededBy
	m.quotes[q.ID] = q.Clone()
	return nil
}

func (m *mockRepository) Supersede(ctx context.Context, id, successorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.quotes[id]
	if !ok {
		return ErrNotFound
	}
	if existing.SupersededBy != nil || existing.Status == StatusDraft {
		return fmt.Errorf("%w: quote %d already has a newer revision", ErrInvalidTransition, id)
	}
	existing.SupersededBy = &successorID
	existing.AcceptTokenHash = ""
	m.quotes[id] = existing
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotes[id]; !ok {
		return ErrNotFound
	}
	delete(m.quotes, id)
	return nil
}

func (m *mockRepository) NextSequence(ctx context.Context, accountID int64, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[accountID]++
	return m.sequences[accountID], nil
}

func (m *mockRepository) RecordTransition(ctx context.Context, change StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	change.ID = int64(len(m.transitions) + 1)
	m.transitions = append(m.transitions, change)
	return nil
}

func (m *mockRepository) Transitions(ctx context.Context, quoteID int64) ([]StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StatusChange
	for _, c := range m.transitions {
		if c.QuoteID == quoteID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepository) ListExpirable(ctx context.Context, asOf time.Time, limit int) ([]Quote, error) {
	m.mu.Lock()
	var out []Quote
	for _, q := range m.quotes {
		if (q.Status == StatusPending || q.Status == StatusSent) && q.SupersededBy == nil &&
			!q.ExpiryDate.IsZero() && q.ExpiryDate.Before(asOf) {
			out = append(out, q.Clone())
		}
	}
	hook := m.afterList
	m.afterList = nil
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (m *mockRepository) stored(id int64) Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotes[id]
}

// ============================================================================
// MOCK COLLABORATORS
// ============================================================================

type mockClients struct {
	clients map[int64]Client
	err     error
}

func (m *mockClients) ListClients(ctx context.Context, filter ClientFilter) ([]Client, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Client
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockClients) GetClient(ctx context.Context, accountID, id int64) (*Client, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

type mockTemplates struct {
	templates map[string]Template
	saved     []Template
}

func (m *mockTemplates) ListTemplates(ctx context.Context, accountID int64) ([]Template, error) {
	var out []Template
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTemplates) GetTemplate(ctx context.Context, accountID int64, id string) (*Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *mockTemplates) SaveTemplate(ctx context.Context, tpl Template) (*Template, error) {
	tpl.ID = "saved-" + tpl.Name
	m.saved = append(m.saved, tpl)
	return &tpl, nil
}

type mockRenderer struct {
	calls  int
	layout string
	err    error
	// started is signalled and block awaited when set, so tests can hold a render open
	started chan struct{}
	block   chan struct{}
	hook    func()
}

func (m *mockRenderer) RenderPDF(ctx context.Context, doc Document, templateID string) ([]byte, error) {
	m.calls++
	m.layout = templateID
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	if m.hook != nil {
		m.hook()
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-1.4 " + doc.Quote.Number), nil
}

func (m *mockRenderer) Layouts() []string { return []string{"classic", "compact"} }

type mockMailer struct {
	sent []Email
	err  error
}

func (m *mockMailer) SendEmail(ctx context.Context, email Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

type mockInvoicer struct {
	calls int
	err   error
}

func (m *mockInvoicer) CreateInvoiceFromQuote(ctx context.Context, q Quote) (InvoiceRef, error) {
	m.calls++
	if m.err != nil {
		return InvoiceRef{}, m.err
	}
	return InvoiceRef{ID: 900 + q.ID, Number: "INV-2024-0001"}, nil
}

type mockAudit struct {
	entries []audit.Entry
}

func (m *mockAudit) Record(ctx context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAudit) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

var errBoom = errors.New("boom")
