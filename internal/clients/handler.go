package clients

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/quotes"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

type store interface {
	ListClients(ctx context.Context, filter quotes.ClientFilter) ([]quotes.Client, error)
	GetClient(ctx context.Context, accountID, id int64) (*quotes.Client, error)
	CreateClient(ctx context.Context, in NewClient) (*quotes.Client, error)
}

// Handler exposes the client directory.
type Handler struct {
	logger    *slog.Logger
	store     store
	validator *validator.Validate
}

// NewHandler constructs a client handler.
func NewHandler(logger *slog.Logger, store store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, validator: httpx.NewValidator()}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.store.ListClients(r.Context(), quotes.ClientFilter{
		AccountID: actor.AccountID,
		Search:    r.URL.Query().Get("q"),
		Limit:     limit,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list clients", slog.Any("error", err))
		httpx.RespondError(w, err, classify)
		return
	}
	httpx.OK(w, http.StatusOK, items)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid client id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	c, err := h.store.GetClient(r.Context(), actor.AccountID, id)
	if err != nil {
		httpx.RespondError(w, err, classify)
		return
	}
	httpx.OK(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in NewClient
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err, classify)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, httpx.Envelope{Error: "validation failed", Fields: httpx.FieldErrors(err)})
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	in.AccountID = actor.AccountID
	c, err := h.store.CreateClient(r.Context(), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create client", slog.Any("error", err))
		httpx.RespondError(w, err, classify)
		return
	}
	httpx.OK(w, http.StatusCreated, c)
}

func classify(err error) (httpx.Status, map[string]string, bool) {
	if errors.Is(err, quotes.ErrNotFound) {
		return httpx.Status{Code: http.StatusNotFound, Message: "client not found"}, nil, true
	}
	return httpx.Status{}, nil, false
}
