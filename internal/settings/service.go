package settings

import (
	"context"
	"fmt"
)

type Service struct {
	repo  Repository
	cache *Cache
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListByCategory returns all settings of a category, served from the
// bounded-TTL cache when warm.
func (s *Service) ListByCategory(ctx context.Context, category string) ([]Setting, error) {
	return s.cache.FetchCategory(ctx, category, func(ctx context.Context) ([]Setting, error) {
		return s.repo.ListByCategory(ctx, category)
	})
}

// Get reads a single setting, bypassing the cache.
func (s *Service) Get(ctx context.Context, category, key string) (*Setting, error) {
	return s.repo.Get(ctx, category, key)
}

// Upsert writes a setting and invalidates the category cache.
func (s *Service) Upsert(ctx context.Context, setting Setting) error {
	if setting.Category == "" || setting.Key == "" {
		return fmt.Errorf("settings: category and key are required")
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return fmt.Errorf("upsert setting %s/%s: %w", setting.Category, setting.Key, err)
	}
	if err := s.cache.Invalidate(ctx, setting.Category); err != nil {
		// Stale reads expire with the TTL; the write itself succeeded.
		return nil
	}
	return nil
}
