package services

import (
	"sort"
	"strings"
	"sync"

	"github.com/MOULOUNDOU/digicode-immo/internal/models"
)

// SearchCriteria filters the listing catalogue. Zero-valued string
// fields mean "no constraint". MaxPriceXOF is a pointer so that an
// explicit cap of 0 is distinguishable from no cap at all.
type SearchCriteria struct {
	Page        int
	PageSize    int
	Query       string
	City        string
	Type        models.ListingType
	MaxPriceXOF *int64
}

// Normalize clamps pagination to sane values.
func (c *SearchCriteria) Normalize(defaultPageSize int) {
	if c.Page < 1 {
		c.Page = 1
	}
	if c.PageSize < 1 {
		c.PageSize = defaultPageSize
	}
}

// SearchPage is one page of results plus the total match count for the
// whole filter (drives the pager).
type SearchPage struct {
	Items []models.Listing `json:"items"`
	Total int64            `json:"total"`
}

// ListingSnapshot holds an in-memory copy of the active catalogue, kept
// fresh by a background task and used when the primary store is down.
type ListingSnapshot struct {
	mu    sync.RWMutex
	items []models.Listing
}

// NewListingSnapshot returns an empty snapshot.
func NewListingSnapshot() *ListingSnapshot {
	return &ListingSnapshot{items: []models.Listing{}}
}

// Replace swaps the snapshot content wholesale and re-sorts newest first.
func (s *ListingSnapshot) Replace(items []models.Listing) {
	sorted := make([]models.Listing, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	s.mu.Lock()
	s.items = sorted
	s.mu.Unlock()
}

// Len reports the number of listings currently held.
func (s *ListingSnapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of the snapshot content.
func (s *ListingSnapshot) Items() []models.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Listing, len(s.items))
	copy(out, s.items)
	return out
}

// Search applies the same filter semantics as the MongoDB query:
// case-insensitive substring on city, exact type, price at most the cap,
// and a free-text OR over title, city, neighborhood and description.
func (s *ListingSnapshot) Search(criteria SearchCriteria, defaultPageSize int) *SearchPage {
	criteria.Normalize(defaultPageSize)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.Listing{}
	for _, l := range s.items {
		if matchesCriteria(&l, &criteria) {
			matched = append(matched, l)
		}
	}

	total := int64(len(matched))
	from := (criteria.Page - 1) * criteria.PageSize
	if from >= len(matched) {
		return &SearchPage{Items: []models.Listing{}, Total: total}
	}
	to := from + criteria.PageSize
	if to > len(matched) {
		to = len(matched)
	}

	page := make([]models.Listing, to-from)
	copy(page, matched[from:to])
	return &SearchPage{Items: page, Total: total}
}

func matchesCriteria(l *models.Listing, c *SearchCriteria) bool {
	if l.Deleted {
		return false
	}
	if c.City != "" && !containsFold(l.City, c.City) {
		return false
	}
	if c.Type != "" && l.Type != c.Type {
		return false
	}
	if c.MaxPriceXOF != nil && l.PriceXOF > *c.MaxPriceXOF {
		return false
	}
	if q := strings.TrimSpace(c.Query); q != "" {
		if !containsFold(l.Title, q) &&
			!containsFold(l.City, q) &&
			!containsFold(l.Neighborhood, q) &&
			!containsFold(l.Description, q) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
