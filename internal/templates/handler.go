package templates

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/quotes"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Handler exposes template management.
type Handler struct {
	logger    *slog.Logger
	store     quotes.TemplateStore
	validator *validator.Validate
}

// NewHandler constructs a template handler.
func NewHandler(logger *slog.Logger, store quotes.TemplateStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, validator: httpx.NewValidator()}
}

// MountRoutes registers template routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.save)
		r.Get("/{id}", h.show)
	})
}

type templateRequest struct {
	ID           string                `json:"id" validate:"omitempty,max=64"`
	Name         string                `json:"name" validate:"required,max=120"`
	Title        string                `json:"title" validate:"max=200"`
	Description  string                `json:"description"`
	Category     string                `json:"category" validate:"max=100"`
	IsDefault    bool                  `json:"is_default"`
	Items        []quotes.TemplateItem `json:"items" validate:"max=200"`
	Terms        string                `json:"terms"`
	PaymentTerms string                `json:"payment_terms" validate:"max=200"`
	ValidityDays int                   `json:"validity_days" validate:"gte=0,lte=3650"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	items, err := h.store.ListTemplates(r.Context(), actor.AccountID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list templates", slog.Any("error", err))
		httpx.RespondError(w, err, classify)
		return
	}
	httpx.OK(w, http.StatusOK, items)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	tpl, err := h.store.GetTemplate(r.Context(), actor.AccountID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err, classify)
		return
	}
	httpx.OK(w, http.StatusOK, tpl)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err, classify)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, httpx.Envelope{Error: "validation failed", Fields: httpx.FieldErrors(err)})
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	tpl, err := h.store.SaveTemplate(r.Context(), quotes.Template{
		ID:           req.ID,
		AccountID:    actor.AccountID,
		Name:         req.Name,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		IsDefault:    req.IsDefault,
		Items:        req.Items,
		Terms:        req.Terms,
		PaymentTerms: req.PaymentTerms,
		ValidityDays: req.ValidityDays,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "save template", slog.Any("error", err))
		httpx.RespondError(w, err, classify)
		return
	}
	httpx.OK(w, http.StatusCreated, tpl)
}

func classify(err error) (httpx.Status, map[string]string, bool) {
	if errors.Is(err, quotes.ErrNotFound) {
		return httpx.Status{Code: http.StatusNotFound, Message: "template not found"}, nil, true
	}
	return httpx.Status{}, nil, false
}
