package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/quotedesk/internal/audit"
	"github.com/odyssey-erp/quotedesk/internal/observability"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Config tunes the quote service.
type Config struct {
	Defaults      Defaults
	PublicBaseURL string
	Currencies    []string
	TokenCost     int
	ExpireBatch   int
}

// Deps wires the collaborators the service calls.
type Deps struct {
	Repo      Repository
	Clients   ClientDirectory
	Templates TemplateStore
	Renderer  Renderer
	Mailer    Mailer
	Invoicer  Invoicer
	Audit     AuditRecorder
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service coordinates quote editing and lifecycle transitions with the
// collaborators that persist, render, mail and invoice them.
type Service struct {
	cfg       Config
	repo      Repository
	clients   ClientDirectory
	templates TemplateStore
	renderer  Renderer
	mailer    Mailer
	invoicer  Invoicer
	audit     AuditRecorder
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
	inflight  *inflight
}

// NewService constructs the service.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.TokenCost == 0 {
		cfg.TokenCost = bcrypt.DefaultCost
	}
	if cfg.ExpireBatch <= 0 {
		cfg.ExpireBatch = 200
	}
	if len(cfg.Currencies) == 0 {
		cfg.Currencies = []string{"EUR", "USD", "GBP", "CHF", "IDR", "JPY"}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:       cfg,
		repo:      deps.Repo,
		clients:   deps.Clients,
		templates: deps.Templates,
		renderer:  deps.Renderer,
		mailer:    deps.Mailer,
		invoicer:  deps.Invoicer,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		logger:    logger.With(slog.String("component", "quotes")),
		now:       now,
		inflight:  newInflight(),
	}
}

// Create builds a new draft, assigns its number and stores it.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateQuoteRequest) (*Quote, error) {
	q, err := s.build(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	q.CreatedAt, q.UpdatedAt = now, now

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		year := q.IssueDate.Year()
		seq, err := repo.NextSequence(ctx, q.AccountID, year)
		if err != nil {
			return fmt.Errorf("next quote number: %w", err)
		}
		q.Number = FormatNumber(s.cfg.Defaults.NumberPrefix, year, seq)
		id, err := repo.Create(ctx, q)
		if err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		q.ID = id
		return repo.RecordTransition(ctx, StatusChange{
			QuoteID:    id,
			To:         StatusDraft,
			ActorID:    actor.UserID,
			Reason:     "created",
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, persistErr("create", err)
	}
	s.logger.InfoContext(ctx, "quote created",
		slog.Int64("quote_id", q.ID), slog.String("number", q.Number), slog.Int64("account_id", q.AccountID))
	s.record(ctx, q, actor.UserID, "quote.created", nil)
	return s.Get(ctx, actor, q.ID)
}

// Preview computes a quote from the request without storing it.
func (s *Service) Preview(ctx context.Context, actor shared.Actor, req CreateQuoteRequest) (PreviewResponse, error) {
	q, err := s.build(ctx, actor, req)
	if err != nil {
		return PreviewResponse{}, err
	}
	return PreviewResponse{Quote: q, Errors: Validate(q)}, nil
}

func (s *Service) build(ctx context.Context, actor shared.Actor, req CreateQuoteRequest) (Quote, error) {
	header, err := req.header()
	if err != nil {
		return Quote{}, err
	}
	q := NewQuote(s.cfg.Defaults, DateOnly(s.now()))
	q.AccountID = actor.AccountID
	q.CreatedBy = actor.UserID
	if req.TemplateID != "" {
		tpl, err := s.template(ctx, actor.AccountID, req.TemplateID)
		if err != nil {
			return Quote{}, err
		}
		q = ApplyTemplate(q, *tpl)
	}
	if q, err = ApplyHeader(q, header); err != nil {
		return Quote{}, err
	}
	if len(req.Items) > 0 {
		patches, ids := itemPatches(req.Items)
		if q, err = ReplaceItems(q, patches, ids); err != nil {
			return Quote{}, err
		}
	}
	s.observeClamps(ctx, q)
	return q, nil
}

// Get loads a quote scoped to the actor's account.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, persistErr("get", err)
	}
	if q.AccountID != actor.AccountID {
		return nil, ErrNotFound
	}
	return q, nil
}

// List returns a page of quotes for the actor's account.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter, page, perPage int) (ListResponse, error) {
	pg := shared.NewPagination(page, perPage, 0)
	filter.AccountID = actor.AccountID
	filter.Limit = pg.PerPage
	filter.Offset = pg.Offset()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResponse{}, persistErr("list", err)
	}
	if items == nil {
		items = []Quote{}
	}
	return ListResponse{Quotes: items, Pagination: shared.NewPagination(pg.Page, pg.PerPage, total)}, nil
}

// History returns every revision sharing the quote's number and the status
// changes of this revision.
func (s *Service) History(ctx context.Context, actor shared.Actor, id int64) (History, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return History{}, err
	}
	revisions, err := s.repo.Revisions(ctx, q.AccountID, q.Number)
	if err != nil {
		return History{}, persistErr("revisions", err)
	}
	changes, err := s.repo.Transitions(ctx, q.ID)
	if err != nil {
		return History{}, persistErr("transitions", err)
	}
	return History{Revisions: revisions, Transitions: changes}, nil
}

// Update edits header fields and optionally replaces the item list.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateQuoteRequest) (*Quote, error) {
	header, err := req.header()
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, id, "quote.updated", func(q Quote) (Quote, error) {
		q, err := ApplyHeader(q, header)
		if err != nil {
			return q, err
		}
		if req.Items != nil {
			patches, ids := itemPatches(*req.Items)
			return ReplaceItems(q, patches, ids)
		}
		return q, nil
	})
}

// AddItem appends a blank line.
func (s *Service) AddItem(ctx context.Context, actor shared.Actor, id int64, in ItemInput) (*Quote, error) {
	return s.mutate(ctx, actor, id, "quote.item_added", func(q Quote) (Quote, error) {
		q, item, err := AddItem(q)
		if err != nil {
			return q, err
		}
		return PatchItem(q, item.ID, in.Patch())
	})
}

// PatchItem edits one line.
func (s *Service) PatchItem(ctx context.Context, actor shared.Actor, id int64, itemID string, in ItemInput) (*Quote, error) {
	return s.mutate(ctx, actor, id, "quote.item_updated", func(q Quote) (Quote, error) {
		return PatchItem(q, itemID, in.Patch())
	})
}

// RemoveItem drops one line.
func (s *Service) RemoveItem(ctx context.Context, actor shared.Actor, id int64, itemID string) (*Quote, error) {
	return s.mutate(ctx, actor, id, "quote.item_removed", func(q Quote) (Quote, error) {
		return RemoveItem(q, itemID)
	})
}

// ApplyTemplate replaces the quote's items and defaults with a template's.
func (s *Service) ApplyTemplate(ctx context.Context, actor shared.Actor, id int64, templateID string) (*Quote, error) {
	tpl, err := s.template(ctx, actor.AccountID, templateID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, id, "quote.template_applied", func(q Quote) (Quote, error) {
		return ApplyTemplate(q, *tpl), nil
	})
}

// SaveAsTemplate stores the quote's content as a reusable template.
func (s *Service) SaveAsTemplate(ctx context.Context, actor shared.Actor, id int64, name string) (*Template, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	var saved *Template
	err = s.call(ctx, "templates", "save", func() error {
		var err error
		saved, err = s.templates.SaveTemplate(ctx, TemplateFromQuote(*q, name))
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Delete removes a draft.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	release, err := s.inflight.acquire(key("quote", id))
	if err != nil {
		return err
	}
	defer release()

	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !q.Editable() {
		return ErrNotEditable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return persistErr("delete", err)
	}
	s.record(ctx, *q, actor.UserID, "quote.deleted", nil)
	return nil
}

func (s *Service) mutate(ctx context.Context, actor shared.Actor, id int64, action string, fn func(Quote) (Quote, error)) (*Quote, error) {
	release, err := s.inflight.acquire(key("quote", id))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !current.Editable() {
		return nil, ErrNotEditable
	}
	next, err := fn(*current)
	if err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.AccountID = current.AccountID
	next.Number = current.Number
	next.Version = current.Version
	next.UpdatedAt = s.now()
	s.observeClamps(ctx, next)

	if err := s.repo.Update(ctx, next, current.Status); err != nil {
		return nil, persistErr("update", err)
	}
	s.record(ctx, next, actor.UserID, action, nil)
	return &next, nil
}

// Submit moves a draft to pending review.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, id int64) (*Quote, error) {
	return s.transition(ctx, actor, id, StatusPending, "", nil)
}

// Send renders the quote, mails it to the client with a response link and
// marks it sent. Nothing is stored when rendering or mailing fails.
func (s *Service) Send(ctx context.Context, actor shared.Actor, id int64, req EmailRequest) (*Quote, error) {
	return s.transition(ctx, actor, id, StatusSent, "", func(ctx context.Context, next Quote) (Quote, error) {
		client, err := s.client(ctx, next.AccountID, next.ClientID)
		if err != nil {
			return next, err
		}
		if len(req.To) == 0 && client.Email == "" {
			return next, &ValidationError{Fields: FieldErrors{"to": "client has no email address"}}
		}
		token := uuid.NewString()
		hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cfg.TokenCost)
		if err != nil {
			return next, fmt.Errorf("hash response token: %w", err)
		}
		next.AcceptTokenHash = string(hash)

		pdf, err := s.render(ctx, Document{Quote: next, Client: *client}, next.PDFTemplateID)
		if err != nil {
			return next, err
		}
		email := ComposeEmail(next, *client, req, s.responseLink(next, token), pdf)
		if err := s.call(ctx, "mailer", "send", func() error {
			return s.mailer.SendEmail(ctx, email)
		}); err != nil {
			return next, err
		}
		return next, nil
	})
}

// Accept records the client's acceptance on their behalf.
func (s *Service) Accept(ctx context.Context, actor shared.Actor, id int64) (*Quote, error) {
	return s.transition(ctx, actor, id, StatusAccepted, "", nil)
}

// Reject records the client's rejection on their behalf.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, id int64, reason string) (*Quote, error) {
	return s.transition(ctx, actor, id, StatusRejected, strings.TrimSpace(reason), nil)
}

// Respond applies a client's decision received through the emailed link.
func (s *Service) Respond(ctx context.Context, id int64, req RespondRequest) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, persistErr("get", err)
	}
	if q.AcceptTokenHash == "" || bcrypt.CompareHashAndPassword([]byte(q.AcceptTokenHash), []byte(req.Token)) != nil {
		return nil, ErrInvalidToken
	}
	to := StatusAccepted
	if req.Decision == "reject" {
		to = StatusRejected
	}
	client := shared.Actor{AccountID: q.AccountID}
	return s.transition(ctx, client, id, to, strings.TrimSpace(req.Reason), nil)
}

// Convert creates an invoice from an accepted quote and marks it converted.
// If the invoicer fails the quote stays accepted.
func (s *Service) Convert(ctx context.Context, actor shared.Actor, id int64) (*Quote, error) {
	return s.transition(ctx, actor, id, StatusConverted, "", func(ctx context.Context, next Quote) (Quote, error) {
		var ref InvoiceRef
		if err := s.call(ctx, "invoicer", "create_invoice", func() error {
			var err error
			ref, err = s.invoicer.CreateInvoiceFromQuote(ctx, next)
			return err
		}); err != nil {
			return next, err
		}
		next.InvoiceID = &ref.ID
		s.logger.InfoContext(ctx, "quote converted",
			slog.Int64("quote_id", next.ID), slog.String("invoice_number", ref.Number))
		return next, nil
	})
}

// Reopen forks a new draft revision from a quote that left draft. The
// predecessor is superseded in the same transaction: its response link stops
// working and it accepts no further transitions.
func (s *Service) Reopen(ctx context.Context, actor shared.Actor, id int64) (*Quote, error) {
	release, err := s.inflight.acquire(key("quote", id))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next, change, err := Reopen(*current, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		newID, err := repo.Create(ctx, next)
		if err != nil {
			return fmt.Errorf("create revision: %w", err)
		}
		next.ID = newID
		if err := repo.Supersede(ctx, current.ID, newID); err != nil {
			return fmt.Errorf("supersede quote %d: %w", current.ID, err)
		}
		change.QuoteID = newID
		return repo.RecordTransition(ctx, change)
	})
	if err != nil {
		return nil, persistErr("reopen", err)
	}
	s.metrics.ObserveTransition(string(change.From), string(change.To))
	s.record(ctx, next, actor.UserID, "quote.reopened", map[string]any{"parent_quote_id": current.ID, "version": next.Version})
	return s.Get(ctx, actor, next.ID)
}

// ExpireDue moves pending and sent quotes whose expiry date has passed to
// expired. It returns how many quotes were expired. Quotes that changed after
// they were listed, or that have an action in flight, are left for the next
// sweep.
func (s *Service) ExpireDue(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.repo.ListExpirable(ctx, DateOnly(asOf), s.cfg.ExpireBatch)
	if err != nil {
		return 0, persistErr("list_expirable", err)
	}
	var (
		count int
		errs  []error
	)
	for _, q := range due {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		expired, err := s.expire(ctx, q, asOf)
		if err != nil {
			s.logger.WarnContext(ctx, "expire quote failed", slog.Int64("quote_id", q.ID), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("quote %d: %w", q.ID, err))
			continue
		}
		if expired {
			count++
		}
	}
	return count, errors.Join(errs...)
}

func (s *Service) expire(ctx context.Context, q Quote, asOf time.Time) (bool, error) {
	release, err := s.inflight.acquire(key("quote", q.ID))
	if err != nil {
		return false, nil
	}
	defer release()

	_, err = s.advance(ctx, q, TransitionRequest{To: StatusExpired, At: asOf, Reason: "validity period elapsed"}, nil)
	if errors.Is(err, ErrInvalidTransition) {
		s.logger.InfoContext(ctx, "quote changed since the expiry scan, skipped", slog.Int64("quote_id", q.ID))
		return false, nil
	}
	return err == nil, err
}

// RenderPDF renders the quote with the given layout, or its own when empty.
func (s *Service) RenderPDF(ctx context.Context, actor shared.Actor, id int64, layout string) ([]byte, *Quote, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.client(ctx, q.AccountID, q.ClientID)
	if err != nil {
		return nil, nil, err
	}
	if layout == "" {
		layout = q.PDFTemplateID
	}
	pdf, err := s.render(ctx, Document{Quote: *q, Client: *client}, layout)
	if err != nil {
		return nil, nil, err
	}
	return pdf, q, nil
}

// EmailQuote mails the current PDF without changing the status.
func (s *Service) EmailQuote(ctx context.Context, actor shared.Actor, id int64, req EmailRequest) error {
	release, err := s.inflight.acquire(key("email", id))
	if err != nil {
		return err
	}
	defer release()

	pdf, q, err := s.RenderPDF(ctx, actor, id, "")
	if err != nil {
		return err
	}
	client, err := s.client(ctx, q.AccountID, q.ClientID)
	if err != nil {
		return err
	}
	email := ComposeEmail(*q, *client, req, "", pdf)
	if len(email.To) == 0 {
		return &ValidationError{Fields: FieldErrors{"to": "recipient email is required"}}
	}
	if err := s.call(ctx, "mailer", "send", func() error {
		return s.mailer.SendEmail(ctx, email)
	}); err != nil {
		return err
	}
	s.record(ctx, *q, actor.UserID, "quote.emailed", map[string]any{"to": email.To})
	return nil
}

// FormOptions loads the editor choices concurrently.
func (s *Service) FormOptions(ctx context.Context, actor shared.Actor) (FormOptions, error) {
	opts := FormOptions{
		Currencies: s.cfg.Currencies,
		Priorities: []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent},
	}
	if s.renderer != nil {
		opts.PDFTemplates = s.renderer.Layouts()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.call(gctx, "clients", "list", func() error {
			var err error
			opts.Clients, err = s.clients.ListClients(gctx, ClientFilter{AccountID: actor.AccountID, Limit: 500})
			return err
		})
	})
	g.Go(func() error {
		return s.call(gctx, "templates", "list", func() error {
			var err error
			opts.Templates, err = s.templates.ListTemplates(gctx, actor.AccountID)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return FormOptions{}, err
	}
	return opts, nil
}

func (s *Service) transition(ctx context.Context, actor shared.Actor, id int64, to Status, reason string, effects func(context.Context, Quote) (Quote, error)) (*Quote, error) {
	release, err := s.inflight.acquire(key("quote", id))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, *current, TransitionRequest{To: to, ActorID: actor.UserID, At: s.now(), Reason: reason}, effects)
}

// advance checks the transition, runs its side effects and only then stores
// the new status together with the change record.
func (s *Service) advance(ctx context.Context, current Quote, req TransitionRequest, effects func(context.Context, Quote) (Quote, error)) (*Quote, error) {
	next, change, err := Advance(current, req)
	if err != nil {
		return nil, err
	}
	if effects != nil {
		if next, err = effects(ctx, next); err != nil {
			return nil, err
		}
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, next, change.From); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return repo.RecordTransition(ctx, change)
	})
	if err != nil {
		return nil, persistErr("transition", err)
	}
	s.metrics.ObserveTransition(string(change.From), string(change.To))
	s.logger.InfoContext(ctx, "quote transitioned",
		slog.Int64("quote_id", next.ID),
		slog.String("from", string(change.From)),
		slog.String("to", string(change.To)),
		slog.Int64("actor_id", change.ActorID))
	meta := map[string]any{"from": change.From, "to": change.To}
	if change.Reason != "" {
		meta["reason"] = change.Reason
	}
	s.record(ctx, next, change.ActorID, "quote."+string(change.To), meta)
	return &next, nil
}

func (s *Service) template(ctx context.Context, accountID int64, id string) (*Template, error) {
	var tpl *Template
	err := s.call(ctx, "templates", "get", func() error {
		var err error
		tpl, err = s.templates.GetTemplate(ctx, accountID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *Service) client(ctx context.Context, accountID, id int64) (*Client, error) {
	if id <= 0 {
		return &Client{}, nil
	}
	var c *Client
	err := s.call(ctx, "clients", "get", func() error {
		var err error
		c, err = s.clients.GetClient(ctx, accountID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) render(ctx context.Context, doc Document, layout string) ([]byte, error) {
	var pdf []byte
	err := s.call(ctx, "renderer", "render_pdf", func() error {
		var err error
		pdf, err = s.renderer.RenderPDF(ctx, doc, layout)
		return err
	})
	return pdf, err
}

// call runs a collaborator request. Results arriving after the caller has
// gone away are discarded.
func (s *Service) call(ctx context.Context, collaborator, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveCollaborator(collaborator, op, start, err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrAbandoned, collaborator, op, ctxErr)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "collaborator call failed",
			slog.String("collaborator", collaborator), slog.String("op", op), slog.Any("error", err))
		if isDomainErr(err) {
			return err
		}
		return collaboratorErr(collaborator, op, err)
	}
	return nil
}

func (s *Service) responseLink(q Quote, token string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/public/quotes/" + strconv.FormatInt(q.ID, 10) + "/respond?token=" + url.QueryEscape(token)
}

func (s *Service) observeClamps(ctx context.Context, q Quote) {
	if ids := q.ClampedItems(); len(ids) > 0 {
		s.metrics.ObserveClamp("line", len(ids))
		s.logger.WarnContext(ctx, "line discount exceeds gross amount, clamped to zero",
			slog.Int64("quote_id", q.ID), slog.Any("items", ids))
	}
	if q.Totals.Clamped {
		s.metrics.ObserveClamp("quote", 1)
		s.logger.WarnContext(ctx, "global discount exceeds subtotal, clamped to zero", slog.Int64("quote_id", q.ID))
	}
}

func (s *Service) record(ctx context.Context, q Quote, actorID int64, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = q.Number
	meta["version"] = q.Version
	entry := audit.Entry{
		AccountID: q.AccountID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "quote",
		EntityID:  strconv.FormatInt(q.ID, 10),
		Meta:      meta,
		At:        s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func isDomainErr(err error) bool {
	var verr *ValidationError
	var cerr *CollaboratorError
	return errors.As(err, &verr) || errors.As(err, &cerr) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotEditable) ||
		errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrLastLineItem) ||
		errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrNotExpired) ||
		errors.Is(err, ErrAbandoned)
}

// persistErr passes domain errors through and wraps storage failures.
func persistErr(op string, err error) error {
	if isDomainErr(err) {
		return err
	}
	return collaboratorErr("persistence", op, err)
}

func key(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}

// inflight rejects a second request for the same quote action while the
// first is still running.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{keys: make(map[string]struct{})}
}

func (f *inflight) acquire(k string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.keys[k]; busy {
		return nil, ErrActionInProgress
	}
	f.keys[k] = struct{}{}
	return func() {
		f.mu.Lock()
		delete(f.keys, k)
		f.mu.Unlock()
	}, nil
}
