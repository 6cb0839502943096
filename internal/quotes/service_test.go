package quotes

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

var testActor = shared.Actor{AccountID: 1, UserID: 42}

type fixture struct {
	svc       *Service
	repo      *mockRepository
	clients   *mockClients
	templates *mockTemplates
	renderer  *mockRenderer
	mailer    *mockMailer
	invoicer  *mockInvoicer
	audit     *mockAudit
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newMockRepository(),
		clients: &mockClients{clients: map[int64]Client{
			7: {ID: 7, Name: "Acme Srl", Email: "billing@acme.test"},
			8: {ID: 8, Name: "No Mail Ltd"},
		}},
		templates: &mockTemplates{templates: map[string]Template{
			"tpl-web": {
				ID:    "tpl-web",
				Name:  "Website",
				Title: "Website build",
				Terms: "50% upfront",
				Items: []TemplateItem{
					{Description: "Design", Quantity: nullDec("1"), UnitPrice: dec("500")},
					{Description: "Build", Quantity: nullDec("10"), UnitPrice: dec("80")},
				},
			},
		}},
		renderer: &mockRenderer{},
		mailer:   &mockMailer{},
		invoicer: &mockInvoicer{},
		audit:    &mockAudit{},
		now:      time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Config{
		Defaults:      Defaults{Currency: "EUR", TaxRate: dec("22"), NumberPrefix: "QUO"},
		PublicBaseURL: "https://quotes.example.com/",
		TokenCost:     bcrypt.MinCost,
	}, Deps{
		Repo:      f.repo,
		Clients:   f.clients,
		Templates: f.templates,
		Renderer:  f.renderer,
		Mailer:    f.mailer,
		Invoicer:  f.invoicer,
		Audit:     f.audit,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return f.now },
	})
	return f
}

func num(s string) *NumberInput {
	n := NumberInput(s)
	return &n
}

func readyRequest() CreateQuoteRequest {
	return CreateQuoteRequest{
		ClientID: 7,
		Title:    "Website redesign",
		Items: []ItemInput{{
			Description:     strPtr("Design work"),
			Quantity:        num("2"),
			UnitPrice:       num("100"),
			DiscountPercent: num("10"),
			TaxRate:         num("22"),
		}},
	}
}

func (f *fixture) create(t *testing.T) *Quote {
	t.Helper()
	q, err := f.svc.Create(context.Background(), testActor, readyRequest())
	require.NoError(t, err)
	return q
}

func (f *fixture) sent(t *testing.T) *Quote {
	t.Helper()
	q := f.create(t)
	q, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	require.NoError(t, err)
	return q
}

func TestServiceCreateAssignsNumberAndTotals(t *testing.T) {
	f := newFixture(t)

	q := f.create(t)
	assert.Equal(t, "QUO-2024-001", q.Number)
	assert.Equal(t, StatusDraft, q.Status)
	assert.Equal(t, 1, q.Version)
	assert.Equal(t, int64(1), q.AccountID)
	assert.Equal(t, int64(42), q.CreatedBy)
	assert.Equal(t, "219.6", q.Totals.TotalAmount.String())
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), q.ExpiryDate)
	assert.Equal(t, q.ExpiryDate, q.DueDate)

	second := f.create(t)
	assert.Equal(t, "QUO-2024-002", second.Number)

	history, err := f.svc.History(context.Background(), testActor, q.ID)
	require.NoError(t, err)
	require.Len(t, history.Transitions, 1)
	assert.Equal(t, StatusDraft, history.Transitions[0].To)
	assert.Contains(t, f.audit.actions(), "quote.created")
}

func TestServiceCreateFromTemplate(t *testing.T) {
	f := newFixture(t)
	req := CreateQuoteRequest{ClientID: 7, TemplateID: "tpl-web"}

	q, err := f.svc.Create(context.Background(), testActor, req)
	require.NoError(t, err)
	assert.Equal(t, "Website build", q.Title)
	assert.Equal(t, "50% upfront", q.Terms)
	require.Len(t, q.Items, 2)
	assert.Equal(t, "1300", q.Totals.ItemsSubtotal.String())
}

func TestServiceCreateUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), testActor, CreateQuoteRequest{TemplateID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.repo.quotes)
}

func TestServiceNumberIsImmutableAcrossUpdates(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	title := "Website redesign, phase 2"
	items := []ItemInput{{Description: strPtr("Build"), Quantity: num("1"), UnitPrice: num("900")}}
	updated, err := f.svc.Update(context.Background(), testActor, q.ID, UpdateQuoteRequest{Title: &title, Items: &items})
	require.NoError(t, err)

	assert.Equal(t, "QUO-2024-001", updated.Number)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "900", updated.Totals.ItemsSubtotal.String())
	assert.Equal(t, "QUO-2024-001", f.repo.stored(q.ID).Number)
}

func TestServiceUpdateRejectedOutsideDraft(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)

	title := "late change"
	_, err := f.svc.Update(context.Background(), testActor, q.ID, UpdateQuoteRequest{Title: &title})
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestServiceItemOperations(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	ctx := context.Background()

	_, err := f.svc.RemoveItem(ctx, testActor, q.ID, q.Items[0].ID)
	require.ErrorIs(t, err, ErrLastLineItem)
	assert.Len(t, f.repo.stored(q.ID).Items, 1)

	q, err = f.svc.AddItem(ctx, testActor, q.ID, ItemInput{Description: strPtr("Hosting"), UnitPrice: num("20")})
	require.NoError(t, err)
	require.Len(t, q.Items, 2)
	assert.Equal(t, "200", q.Totals.ItemsSubtotal.String())

	q, err = f.svc.PatchItem(ctx, testActor, q.ID, q.Items[1].ID, ItemInput{Quantity: num("3")})
	require.NoError(t, err)
	assert.Equal(t, "240", q.Totals.ItemsSubtotal.String())

	q, err = f.svc.RemoveItem(ctx, testActor, q.ID, q.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "60", q.Totals.ItemsSubtotal.String())
}

func TestServiceApplyTemplateReplacesItems(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	q, err := f.svc.ApplyTemplate(context.Background(), testActor, q.ID, "tpl-web")
	require.NoError(t, err)
	assert.Len(t, q.Items, 2)
	assert.Equal(t, "QUO-2024-001", q.Number)
	assert.Equal(t, int64(7), q.ClientID)
}

func TestServiceSaveAsTemplate(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	tpl, err := f.svc.SaveAsTemplate(context.Background(), testActor, q.ID, "Redesign")
	require.NoError(t, err)
	assert.Equal(t, "saved-Redesign", tpl.ID)
	require.Len(t, f.templates.saved, 1)
	assert.Len(t, f.templates.saved[0].Items, 1)
}

func TestServiceSendRejectsInvalidQuote(t *testing.T) {
	f := newFixture(t)
	req := readyRequest()
	req.ClientID = 0
	q, err := f.svc.Create(context.Background(), testActor, req)
	require.NoError(t, err)

	_, err = f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "client_id")
	assert.Zero(t, f.renderer.calls)
	assert.Empty(t, f.mailer.sent)
	assert.Equal(t, StatusDraft, f.repo.stored(q.ID).Status)
}

func TestServiceSendRendersAndMails(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	sent, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, f.now, *sent.SentAt)

	require.Len(t, f.mailer.sent, 1)
	email := f.mailer.sent[0]
	assert.Equal(t, []string{"billing@acme.test"}, email.To)
	assert.Equal(t, "Quote QUO-2024-001: Website redesign", email.Subject)
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "QUO-2024-001-v1.pdf", email.Attachments[0].Filename)
	assert.Contains(t, email.Body, "https://quotes.example.com/public/quotes/1/respond?token=")

	stored := f.repo.stored(q.ID)
	assert.Equal(t, StatusSent, stored.Status)
	assert.NotEmpty(t, stored.AcceptTokenHash)
	assert.Contains(t, f.audit.actions(), "quote.sent")
}

func TestServiceSendRequiresRecipient(t *testing.T) {
	f := newFixture(t)
	req := readyRequest()
	req.ClientID = 8
	q, err := f.svc.Create(context.Background(), testActor, req)
	require.NoError(t, err)

	_, err = f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "to")

	_, err = f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{To: []string{"cfo@nomail.test"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"cfo@nomail.test"}, f.mailer.sent[0].To)
}

func TestServiceSendRenderFailureLeavesQuoteUntouched(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.renderer.err = errBoom

	_, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	var cerr *CollaboratorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "renderer", cerr.Collaborator)
	assert.Empty(t, f.mailer.sent)

	stored := f.repo.stored(q.ID)
	assert.Equal(t, StatusDraft, stored.Status)
	assert.Empty(t, stored.AcceptTokenHash)
	assert.Equal(t, "219.6", stored.Totals.TotalAmount.String())
}

func TestServiceSendMailFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.mailer.err = errBoom

	_, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	var cerr *CollaboratorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "mailer", cerr.Collaborator)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StatusDraft, f.repo.stored(q.ID).Status)

	f.mailer.err = nil
	sent, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
}

func TestServicePersistenceFailureIsCollaboratorError(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.repo.updateError = errBoom

	_, err := f.svc.Submit(context.Background(), testActor, q.ID)
	var cerr *CollaboratorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "persistence", cerr.Collaborator)
	assert.Equal(t, StatusDraft, f.repo.stored(q.ID).Status)
}

func TestServiceSubmitThenSend(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	pending, err := f.svc.Submit(context.Background(), testActor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)

	sent, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
}

func responseToken(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	raw := strings.TrimSpace(strings.SplitN(body[idx+len("token="):], "\n", 2)[0])
	token, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	return token
}

func TestServiceRespondWithToken(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)
	token := responseToken(t, f.mailer.sent[0].Body)

	_, err := f.svc.Respond(context.Background(), q.ID, RespondRequest{Token: "forged", Decision: "accept"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	accepted, err := f.svc.Respond(context.Background(), q.ID, RespondRequest{Token: token, Decision: "accept"})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)
	assert.Equal(t, int64(0), *accepted.AcceptedBy)
}

func TestServiceRejectRecordsReason(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)

	rejected, err := f.svc.Reject(context.Background(), testActor, q.ID, " budget cut ")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "budget cut", rejected.RejectionReason)
	assert.Equal(t, int64(42), *rejected.RejectedBy)
}

func TestServiceConvert(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)
	_, err := f.svc.Accept(context.Background(), testActor, q.ID)
	require.NoError(t, err)

	f.invoicer.err = errBoom
	_, err = f.svc.Convert(context.Background(), testActor, q.ID)
	var cerr *CollaboratorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "invoicer", cerr.Collaborator)
	assert.Equal(t, StatusAccepted, f.repo.stored(q.ID).Status)

	f.invoicer.err = nil
	converted, err := f.svc.Convert(context.Background(), testActor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConverted, converted.Status)
	require.NotNil(t, converted.InvoiceID)
	assert.Equal(t, int64(900+q.ID), *converted.InvoiceID)
	assert.Equal(t, 2, f.invoicer.calls)
}

func TestServiceConvertRequiresAccepted(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)

	_, err := f.svc.Convert(context.Background(), testActor, q.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, f.invoicer.calls)
}

func TestServiceReopenCreatesNewVersion(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)
	token := responseToken(t, f.mailer.sent[0].Body)

	rev, err := f.svc.Reopen(context.Background(), testActor, q.ID)
	require.NoError(t, err)
	assert.NotEqual(t, q.ID, rev.ID)
	assert.Equal(t, "QUO-2024-001", rev.Number)
	assert.Equal(t, 2, rev.Version)
	assert.Equal(t, StatusDraft, rev.Status)
	require.NotNil(t, rev.ParentQuoteID)
	assert.Equal(t, q.ID, *rev.ParentQuoteID)

	previous := f.repo.stored(q.ID)
	assert.Equal(t, StatusSent, previous.Status)
	require.NotNil(t, previous.SupersededBy)
	assert.Equal(t, rev.ID, *previous.SupersededBy)
	assert.Empty(t, previous.AcceptTokenHash)

	_, err = f.svc.Respond(context.Background(), q.ID, RespondRequest{Token: token, Decision: "accept"})
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.svc.Accept(context.Background(), testActor, q.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusSent, f.repo.stored(q.ID).Status)

	history, err := f.svc.History(context.Background(), testActor, rev.ID)
	require.NoError(t, err)
	require.Len(t, history.Revisions, 2)
	assert.Equal(t, 1, history.Revisions[0].Version)
	assert.Equal(t, 2, history.Revisions[1].Version)

	title := "revised"
	_, err = f.svc.Update(context.Background(), testActor, rev.ID, UpdateQuoteRequest{Title: &title})
	require.NoError(t, err)
}

func TestServiceReopenTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)

	_, err := f.svc.Reopen(context.Background(), testActor, q.ID)
	require.NoError(t, err)
	_, err = f.svc.Reopen(context.Background(), testActor, q.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	history, err := f.svc.History(context.Background(), testActor, q.ID)
	require.NoError(t, err)
	assert.Len(t, history.Revisions, 2)
}

func TestServiceSupersededQuoteCannotBeConverted(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)
	_, err := f.svc.Accept(context.Background(), testActor, q.ID)
	require.NoError(t, err)

	_, err = f.svc.Reopen(context.Background(), testActor, q.ID)
	require.NoError(t, err)

	_, err = f.svc.Convert(context.Background(), testActor, q.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, f.invoicer.calls)
	assert.Equal(t, StatusAccepted, f.repo.stored(q.ID).Status)
}

func TestServiceExpireDueSkipsSupersededQuotes(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)
	_, err := f.svc.Reopen(context.Background(), testActor, q.ID)
	require.NoError(t, err)

	n, err := f.svc.ExpireDue(context.Background(), time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, StatusSent, f.repo.stored(q.ID).Status)
}

func TestServiceExpireDueKeepsAcceptanceMadeDuringSweep(t *testing.T) {
	f := newFixture(t)
	q := f.sent(t)
	f.repo.afterList = func() {
		_, err := f.svc.Accept(context.Background(), testActor, q.ID)
		require.NoError(t, err)
	}

	n, err := f.svc.ExpireDue(context.Background(), time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	stored := f.repo.stored(q.ID)
	assert.Equal(t, StatusAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)
	require.NotNil(t, stored.AcceptedBy)
	assert.Equal(t, int64(42), *stored.AcceptedBy)
}

func TestServiceReportsTheDateFieldThatFailedToParse(t *testing.T) {
	f := newFixture(t)
	req := readyRequest()
	req.IssueDate = "2024-01-05"
	req.DueDate = "05/02/2024"

	_, err := f.svc.Create(context.Background(), testActor, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "due_date")
	assert.NotContains(t, verr.Fields, "issue_date")

	q := f.create(t)
	issue := "tomorrow"
	_, err = f.svc.Update(context.Background(), testActor, q.ID, UpdateQuoteRequest{IssueDate: &issue})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "issue_date")
	assert.NotContains(t, verr.Fields, "due_date")
}

func TestServiceExpireDue(t *testing.T) {
	f := newFixture(t)
	sent := f.sent(t)
	draft := f.create(t)

	n, err := f.svc.ExpireDue(context.Background(), time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.ExpireDue(context.Background(), time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusExpired, f.repo.stored(sent.ID).Status)
	assert.Equal(t, StatusDraft, f.repo.stored(draft.ID).Status)
}

func TestServiceDeleteOnlyDraft(t *testing.T) {
	f := newFixture(t)
	draft := f.create(t)
	require.NoError(t, f.svc.Delete(context.Background(), testActor, draft.ID))
	_, err := f.svc.Get(context.Background(), testActor, draft.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	sent := f.sent(t)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), testActor, sent.ID), ErrNotEditable)
}

func TestServiceScopesByAccount(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	other := shared.Actor{AccountID: 2, UserID: 1}
	_, err := f.svc.Get(context.Background(), other, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.svc.List(context.Background(), other, ListFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, list.Quotes)
	assert.Zero(t, list.Pagination.Total)
}

func TestServiceList(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	f.create(t)
	f.sent(t)

	all, err := f.svc.List(context.Background(), testActor, ListFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, all.Quotes, 2)
	assert.Equal(t, 3, all.Pagination.Total)
	assert.Equal(t, 2, all.Pagination.TotalPages)

	sent, err := f.svc.List(context.Background(), testActor, ListFilter{Status: StatusSent}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, sent.Quotes, 1)
}

func TestServicePreviewDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	req := readyRequest()
	req.ClientID = 0
	req.GlobalDiscountPercent = num("10")

	preview, err := f.svc.Preview(context.Background(), testActor, req)
	require.NoError(t, err)
	assert.Equal(t, "197.64", preview.Quote.Totals.TotalAmount.String())
	assert.Contains(t, preview.Errors, "client_id")
	assert.Empty(t, f.repo.quotes)
}

func TestServiceRenderPDF(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	pdf, got, err := f.svc.RenderPDF(context.Background(), testActor, q.ID, "compact")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, q.Number, got.Number)
	assert.Equal(t, "compact", f.renderer.layout)
}

func TestServiceEmailQuoteKeepsStatus(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	err := f.svc.EmailQuote(context.Background(), testActor, q.ID, EmailRequest{Subject: "Draft for review", Message: "See attached."})
	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "Draft for review", f.mailer.sent[0].Subject)
	assert.True(t, strings.HasPrefix(f.mailer.sent[0].Body, "See attached."))
	assert.NotContains(t, f.mailer.sent[0].Body, "token=")
	assert.Equal(t, StatusDraft, f.repo.stored(q.ID).Status)
}

func TestServiceFormOptions(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.FormOptions(context.Background(), testActor)
	require.NoError(t, err)
	assert.Len(t, opts.Clients, 2)
	assert.Len(t, opts.Templates, 1)
	assert.Equal(t, []string{"classic", "compact"}, opts.PDFTemplates)
	assert.Contains(t, opts.Currencies, "EUR")

	f.clients.err = errBoom
	_, err = f.svc.FormOptions(context.Background(), testActor)
	var cerr *CollaboratorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "clients", cerr.Collaborator)
}

func TestServiceRejectsDuplicateInFlightAction(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.renderer.started = make(chan struct{})
	f.renderer.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
		done <- err
	}()
	<-f.renderer.started

	_, err := f.svc.Send(context.Background(), testActor, q.ID, EmailRequest{})
	assert.ErrorIs(t, err, ErrActionInProgress)
	title := "edit while sending"
	_, err = f.svc.Update(context.Background(), testActor, q.ID, UpdateQuoteRequest{Title: &title})
	assert.ErrorIs(t, err, ErrActionInProgress)

	close(f.renderer.block)
	require.NoError(t, <-done)
	assert.Equal(t, StatusSent, f.repo.stored(q.ID).Status)
}

func TestServiceDiscardsAbandonedResults(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.renderer.hook = cancel

	_, err := f.svc.Send(ctx, testActor, q.ID, EmailRequest{})
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.Empty(t, f.mailer.sent)
	assert.Equal(t, StatusDraft, f.repo.stored(q.ID).Status)
}
