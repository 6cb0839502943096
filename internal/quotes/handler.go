package quotes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Handler exposes the quote service over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	keys      shared.KeyStore
}

// NewHandler constructs a quote HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: httpx.NewValidator(),
	}
}

// WithIdempotencyKeys enables Idempotency-Key handling on mutating actions.
func (h *Handler) WithIdempotencyKeys(keys shared.KeyStore) *Handler {
	h.keys = keys
	return h
}

func (h *Handler) idempotent(module string) func(http.Handler) http.Handler {
	return shared.Idempotent(h.keys, module, h.logger)
}

func (h *Handler) formOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.FormOptions(r.Context(), actorFrom(r))
	if err != nil {
		h.fail(w, r, "form options", err)
		return
	}
	httpx.OK(w, http.StatusOK, opts)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Search: strings.TrimSpace(q.Get("q")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httpx.RespondError(w, &ValidationError{Fields: FieldErrors{"status": "unknown status"}}, classify)
		return
	}
	if raw := q.Get("client_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, &ValidationError{Fields: FieldErrors{"client_id": "must be a number"}}, classify)
			return
		}
		filter.ClientID = id
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage > 100 {
		perPage = 100
	}
	res, err := h.service.List(r.Context(), actorFrom(r), filter, page, perPage)
	if err != nil {
		h.fail(w, r, "list quotes", err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		h.fail(w, r, "create quote", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/quotes/%d", q.ID))
	httpx.OK(w, http.StatusCreated, q)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Preview(r.Context(), actorFrom(r), req)
	if err != nil {
		h.fail(w, r, "preview quote", err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, "get quote", err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req UpdateQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, "update quote")(h.service.Update(r.Context(), actorFrom(r), id, req))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actorFrom(r), id); err != nil {
		h.fail(w, r, "delete quote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var in ItemInput
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, "add item")(h.service.AddItem(r.Context(), actorFrom(r), id, in))
}

func (h *Handler) patchItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var in ItemInput
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, "update item")(h.service.PatchItem(r.Context(), actorFrom(r), id, chi.URLParam(r, "itemID"), in))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "remove item")(h.service.RemoveItem(r.Context(), actorFrom(r), id, chi.URLParam(r, "itemID")))
}

func (h *Handler) applyTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req struct {
		TemplateID string `json:"template_id" validate:"required,max=64"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, "apply template")(h.service.ApplyTemplate(r.Context(), actorFrom(r), id, req.TemplateID))
}

func (h *Handler) saveTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req SaveTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	tpl, err := h.service.SaveAsTemplate(r.Context(), actorFrom(r), id, req.Name)
	if err != nil {
		h.fail(w, r, "save template", err)
		return
	}
	httpx.OK(w, http.StatusCreated, tpl)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "submit quote")(h.service.Submit(r.Context(), actorFrom(r), id))
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req EmailRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	h.respond(w, r, "send quote")(h.service.Send(r.Context(), actorFrom(r), id, req))
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "accept quote")(h.service.Accept(r.Context(), actorFrom(r), id))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req RejectRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	h.respond(w, r, "reject quote")(h.service.Reject(r.Context(), actorFrom(r), id, req.Reason))
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "convert quote")(h.service.Convert(r.Context(), actorFrom(r), id))
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Reopen(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, "reopen quote", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/quotes/%d", q.ID))
	httpx.OK(w, http.StatusCreated, q)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	body, q, err := h.service.RenderPDF(r.Context(), actorFrom(r), id, r.URL.Query().Get("layout"))
	if err != nil {
		h.fail(w, r, "render pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", PDFFilename(*q)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) email(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req EmailRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	if err := h.service.EmailQuote(r.Context(), actorFrom(r), id, req); err != nil {
		h.fail(w, r, "email quote", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, httpx.Envelope{Success: true})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	res, err := h.service.History(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, "quote history", err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

// respondToQuote serves the public accept/reject link. The response never
// echoes internal fields.
func (h *Handler) respondToQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req RespondRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Respond(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidToken
		}
		h.fail(w, r, "respond to quote", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"number": q.Number,
		"status": q.Status,
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op string) func(*Quote, error) {
	return func(q *Quote, err error) {
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		httpx.OK(w, http.StatusOK, q)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.RespondError(w, err, classify)
		return false
	}
	return h.validate(w, target)
}

// decodeOptional accepts an empty body for actions whose payload is optional.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.ContentLength == 0 {
		return h.validate(w, target)
	}
	return h.decode(w, r, target)
}

func (h *Handler) validate(w http.ResponseWriter, target any) bool {
	if err := h.validator.Struct(target); err != nil {
		if fields := httpx.FieldErrors(err); fields != nil {
			httpx.RespondError(w, &ValidationError{Fields: fields}, classify)
			return false
		}
		httpx.RespondError(w, err, classify)
		return false
	}
	return true
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid quote id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if _, _, known := classify(err); !known {
		h.logger.ErrorContext(r.Context(), op, slog.Any("error", err))
	}
	httpx.RespondError(w, err, classify)
}

func actorFrom(r *http.Request) shared.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}

func classify(err error) (httpx.Status, map[string]string, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return httpx.Status{Code: http.StatusUnprocessableEntity, Message: "validation failed"}, verr.Fields, true
	}
	var cerr *CollaboratorError
	if errors.As(err, &cerr) {
		return httpx.Status{
			Code:      http.StatusBadGateway,
			Retryable: true,
			Message:   fmt.Sprintf("%s unavailable, please retry", cerr.Collaborator),
		}, nil, true
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		return httpx.Status{Code: http.StatusNotFound}, nil, true
	case errors.Is(err, ErrNotEditable), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotExpired), errors.Is(err, ErrActionInProgress):
		return httpx.Status{Code: http.StatusConflict}, nil, true
	case errors.Is(err, ErrLastLineItem):
		return httpx.Status{Code: http.StatusUnprocessableEntity}, nil, true
	case errors.Is(err, ErrInvalidToken):
		return httpx.Status{Code: http.StatusForbidden}, nil, true
	case errors.Is(err, ErrAbandoned):
		return httpx.Status{Code: http.StatusServiceUnavailable, Retryable: true, Message: "request abandoned"}, nil, true
	}
	return httpx.Status{}, nil, false
}
