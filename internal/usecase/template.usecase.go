package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"whatsapp-service/internal/domain"
	"whatsapp-service/internal/repository"
)

const (
	templateCacheNS  = "wa:templates"
	templateCacheKey = "all"
	templateCacheTTL = 5 * time.Minute
)

// JSONCache is the subset of pkg/cache the template list needs.
type JSONCache interface {
	GetJSON(ctx context.Context, namespace, key string, dst any) error
	SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
}

// TemplateUsecase serves message templates from Postgres behind a Redis
// cache, or from a static list when no database is configured.
type TemplateUsecase struct {
	repo   repository.TemplateRepository
	cache  JSONCache
	static []domain.Template
	logger *zap.Logger
}

// NewTemplateUsecase accepts a nil repo (static templates only) and a nil
// cache.
func NewTemplateUsecase(repo repository.TemplateRepository, cache JSONCache, static []domain.Template, logger *zap.Logger) *TemplateUsecase {
	return &TemplateUsecase{repo: repo, cache: cache, static: static, logger: logger}
}

// List returns every template. Static templates come first, then stored
// ones; a stored template never shadows a static id.
func (u *TemplateUsecase) List(ctx context.Context) ([]domain.Template, error) {
	out := append([]domain.Template(nil), u.static...)
	if u.repo == nil {
		return out, nil
	}

	stored, err := u.stored(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(out))
	for _, t := range out {
		seen[t.ID] = true
	}
	for _, t := range stored {
		if !seen[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (u *TemplateUsecase) stored(ctx context.Context) ([]domain.Template, error) {
	if u.cache != nil {
		var cached []domain.Template
		if err := u.cache.GetJSON(ctx, templateCacheNS, templateCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	templates, err := u.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if u.cache != nil {
		if err := u.cache.SetJSON(ctx, templateCacheNS, templateCacheKey, templates, templateCacheTTL); err != nil {
			u.logger.Warn("template cache write failed", zap.Error(err))
		}
	}
	return templates, nil
}

func (u *TemplateUsecase) Create(ctx context.Context, title, content string) (*domain.Template, error) {
	if u.repo == nil {
		return nil, domain.ErrTemplatesReadOnly
	}
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title and content are required", domain.ErrInvalidRequest)
	}

	t, err := u.repo.CreateTemplate(ctx, &domain.Template{Title: title, Content: content})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	u.invalidate(ctx)
	u.logger.Info("template created", zap.String("template_id", t.ID))
	return t, nil
}

func (u *TemplateUsecase) Delete(ctx context.Context, templateID string) error {
	if u.repo == nil {
		return domain.ErrTemplatesReadOnly
	}
	for _, t := range u.static {
		if t.ID == templateID {
			return domain.ErrTemplatesReadOnly
		}
	}
	if err := u.repo.DeleteTemplate(ctx, templateID); err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return err
		}
		return fmt.Errorf("delete template: %w", err)
	}
	u.invalidate(ctx)
	return nil
}

func (u *TemplateUsecase) invalidate(ctx context.Context) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Delete(ctx, templateCacheNS, templateCacheKey); err != nil {
		u.logger.Warn("template cache invalidation failed", zap.Error(err))
	}
}
