package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/models"
)

// ISearchService serves catalogue queries, falling back to a local
// snapshot of the listings when the primary store is unreachable.
type ISearchService interface {
	Search(ctx context.Context, criteria SearchCriteria) (*SearchPage, error)
	RefreshSnapshot(ctx context.Context) error
	LoadSnapshot(ctx context.Context) error
}

const snapshotRedisKey = "search:listing_snapshot"

type searchService struct {
	listings IListingService
	snapshot *ListingSnapshot
	rdb      *redis.Client
	cfg      *config.Config

	mu       sync.Mutex
	loadedAt time.Time
}

// NewSearchService creates a SearchService backed by the given listing
// service and Redis client. The snapshot starts empty until LoadSnapshot
// or RefreshSnapshot runs.
func NewSearchService(listings IListingService, rdb *redis.Client, cfg *config.Config) ISearchService {
	return &searchService{
		listings: listings,
		snapshot: NewListingSnapshot(),
		rdb:      rdb,
		cfg:      cfg,
	}
}

// Search queries the primary store and, when that fails, serves the
// same criteria from the local snapshot so browsing stays available.
func (s *searchService) Search(ctx context.Context, criteria SearchCriteria) (*SearchPage, error) {
	page, err := s.listings.Search(ctx, criteria)
	if err == nil {
		return page, nil
	}

	log.Printf("Listing search fell back to local snapshot: %v", err)
	s.reloadIfStale(ctx)
	return s.snapshot.Search(criteria, s.cfg.SearchPageSize), nil
}

// reloadIfStale pulls the Redis copy into memory when the local one has
// outlived a refresh period. The refresher runs in the background worker
// process, so an API instance only ever sees its updates through Redis.
// Best effort: on a Redis fault the current in-memory copy keeps serving.
func (s *searchService) reloadIfStale(ctx context.Context) {
	s.mu.Lock()
	stale := time.Since(s.loadedAt) >= s.cfg.SnapshotRefreshPeriod
	if stale {
		// Claim the slot before releasing the lock so concurrent
		// fallbacks do not all hit Redis at once.
		s.loadedAt = time.Now()
	}
	s.mu.Unlock()
	if !stale {
		return
	}
	if err := s.LoadSnapshot(ctx); err != nil {
		log.Printf("Listing snapshot reload failed, serving previous copy: %v", err)
	}
}

// RefreshSnapshot replaces the local snapshot with the current active
// catalogue and persists it to Redis so restarts do not begin cold.
func (s *searchService) RefreshSnapshot(ctx context.Context) error {
	items, err := s.listings.ListAllListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh listing snapshot: %w", err)
	}
	s.snapshot.Replace(items)
	s.markLoaded()

	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to serialize listing snapshot: %w", err)
	}
	// The snapshot outlives its refresh interval a few times over so a
	// stalled refresher does not empty the fallback.
	ttl := 10 * s.cfg.SnapshotRefreshPeriod
	if err := s.rdb.Set(ctx, snapshotRedisKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to persist listing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot warms the in-memory snapshot from the Redis copy written
// by a previous refresh. A missing key is not an error.
func (s *searchService) LoadSnapshot(ctx context.Context) error {
	payload, err := s.rdb.Get(ctx, snapshotRedisKey).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load listing snapshot: %w", err)
	}
	items := []models.Listing{}
	if err := json.Unmarshal(payload, &items); err != nil {
		return fmt.Errorf("failed to decode listing snapshot: %w", err)
	}
	s.snapshot.Replace(items)
	s.markLoaded()
	return nil
}

func (s *searchService) markLoaded() {
	s.mu.Lock()
	s.loadedAt = time.Now()
	s.mu.Unlock()
}
