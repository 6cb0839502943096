package templates

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// CachedStore serves template reads through the cache and invalidates the
// account on every write.
type CachedStore struct {
	backend quotes.TemplateStore
	cache   *Cache
	logger  *slog.Logger
}

var _ quotes.TemplateStore = (*CachedStore)(nil)

// NewCachedStore wraps backend with cache.
func NewCachedStore(backend quotes.TemplateStore, cache *Cache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{backend: backend, cache: cache, logger: logger}
}

// ListTemplates returns the account's templates.
func (s *CachedStore) ListTemplates(ctx context.Context, accountID int64) ([]quotes.Template, error) {
	key, err := s.cache.Key(ctx, accountID, "list")
	if err != nil {
		s.logger.WarnContext(ctx, "template cache unavailable", slog.Any("error", err))
		return s.backend.ListTemplates(ctx, accountID)
	}
	var out []quotes.Template
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.backend.ListTemplates(ctx, accountID)
	})
	return out, err
}

// GetTemplate returns one template.
func (s *CachedStore) GetTemplate(ctx context.Context, accountID int64, id string) (*quotes.Template, error) {
	key, err := s.cache.Key(ctx, accountID, "tpl:"+id)
	if err != nil {
		s.logger.WarnContext(ctx, "template cache unavailable", slog.Any("error", err))
		return s.backend.GetTemplate(ctx, accountID, id)
	}
	var out quotes.Template
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.backend.GetTemplate(ctx, accountID, id)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveTemplate stores the template and invalidates the account's entries.
func (s *CachedStore) SaveTemplate(ctx context.Context, tpl quotes.Template) (*quotes.Template, error) {
	saved, err := s.backend.SaveTemplate(ctx, tpl)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Bump(ctx, tpl.AccountID); err != nil {
		s.logger.WarnContext(ctx, "template cache bump failed",
			slog.Int64("account_id", tpl.AccountID), slog.Any("error", err))
	}
	return saved, nil
}
