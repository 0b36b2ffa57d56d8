package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/polystore/polystore-console/internal/shared"
)

// CatalogPort defines data access methods for the permission catalog.
type CatalogPort interface {
	ListGroups(ctx context.Context) ([]Group, error)
}

const cacheKey = "catalog:groups"

// Service serves the permission catalog. The catalog is reference data fetched
// once per admin session, so reads go through a Redis cache with a TTL matching
// the session horizon.
type Service struct {
	catalog CatalogPort
	cache   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	coll    *collate.Collator
}

// NewService builds Service instance. cache may be nil, in which case every
// read hits the catalog source.
func NewService(catalog CatalogPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		catalog: catalog,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		coll:    collate.New(language.English, collate.IgnoreCase),
	}
}

// ListGroups returns all permission groups ordered by collated group name.
// Permission order within a group is the catalog's own order.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}

	groups, err := s.catalog.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("permissions: list groups: %w", shared.ErrUnavailable)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return s.coll.CompareString(groups[i].Name, groups[j].Name) < 0
	})

	s.toCache(ctx, groups)
	return groups, nil
}

// Invalidate drops the cached catalog. Used when an operator forces a refresh.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil && s.logger != nil {
		s.logger.Warn("catalog cache invalidate", slog.Any("error", err))
	}
}

func (s *Service) fromCache(ctx context.Context) ([]Group, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var groups []Group
	if err := json.Unmarshal(raw, &groups); err != nil {
		if s.logger != nil {
			s.logger.Warn("catalog cache decode", slog.Any("error", err))
		}
		return nil, false
	}
	return groups, true
}

func (s *Service) toCache(ctx context.Context, groups []Group) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("catalog cache store", slog.Any("error", err))
	}
}
