package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MOULOUNDOU/digicode-immo/internal/models"
	"github.com/MOULOUNDOU/digicode-immo/internal/utils"
)

func snapshotFixture() *ListingSnapshot {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(title, city, neighborhood, desc string, typ models.ListingType, price int64, age time.Duration, deleted bool) models.Listing {
		return models.Listing{
			ID:           utils.NewSixID(),
			OwnerUserID:  utils.NewSixID(),
			Title:        title,
			Type:         typ,
			PriceXOF:     price,
			Description:  desc,
			City:         city,
			Neighborhood: neighborhood,
			PhotoURLs:    []string{},
			CreatedAt:    base.Add(-age),
			Deleted:      deleted,
		}
	}

	s := NewListingSnapshot()
	s.Replace([]models.Listing{
		mk("Chambre meublée", "Brazzaville", "Bacongo", "proche du marché", models.ListingTypeRoom, 45000, 1*time.Hour, false),
		mk("Studio moderne", "Pointe-Noire", "Mpita", "climatisé", models.ListingTypeStudio, 120000, 2*time.Hour, false),
		mk("Appartement 3 pièces", "Brazzaville", "Moungali", "balcon avec vue", models.ListingTypeApartment, 250000, 3*time.Hour, false),
		mk("Maison familiale", "Dolisie", "Centre", "grand jardin", models.ListingTypeHouse, 400000, 4*time.Hour, false),
		mk("Studio supprimé", "Brazzaville", "Talangaï", "ne doit pas sortir", models.ListingTypeStudio, 80000, 30*time.Minute, true),
	})
	return s
}

func TestSnapshotSearchNoFilters(t *testing.T) {
	s := snapshotFixture()

	page := s.Search(SearchCriteria{}, 12)

	// Deleted rows never surface, even in the unfiltered view.
	assert.Equal(t, int64(4), page.Total)
	require.Len(t, page.Items, 4)
	// Newest first.
	assert.Equal(t, "Chambre meublée", page.Items[0].Title)
	assert.Equal(t, "Maison familiale", page.Items[3].Title)
}

func TestSnapshotSearchCitySubstringCaseInsensitive(t *testing.T) {
	s := snapshotFixture()

	page := s.Search(SearchCriteria{City: "brazza"}, 12)

	assert.Equal(t, int64(2), page.Total)
	for _, item := range page.Items {
		assert.Equal(t, "Brazzaville", item.City)
	}
}

func TestSnapshotSearchTypeExact(t *testing.T) {
	s := snapshotFixture()

	page := s.Search(SearchCriteria{Type: models.ListingTypeStudio}, 12)

	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Studio moderne", page.Items[0].Title)
}

func TestSnapshotSearchMaxPrice(t *testing.T) {
	s := snapshotFixture()

	maxPrice := int64(120000)
	page := s.Search(SearchCriteria{MaxPriceXOF: &maxPrice}, 12)

	assert.Equal(t, int64(2), page.Total)
	for _, item := range page.Items {
		assert.LessOrEqual(t, item.PriceXOF, maxPrice)
	}
}

func TestSnapshotSearchMaxPriceZeroIsACap(t *testing.T) {
	s := snapshotFixture()

	zero := int64(0)
	page := s.Search(SearchCriteria{MaxPriceXOF: &zero}, 12)

	// A zero cap filters everything out; it is not "no filter".
	assert.Equal(t, int64(0), page.Total)
	assert.Empty(t, page.Items)
}

func TestSnapshotSearchFreeTextAcrossFields(t *testing.T) {
	s := snapshotFixture()

	// Matches description of one listing and neighborhood of none.
	page := s.Search(SearchCriteria{Query: "JARDIN"}, 12)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Maison familiale", page.Items[0].Title)

	// Matches city and title fields of different listings.
	page = s.Search(SearchCriteria{Query: "studio"}, 12)
	assert.Equal(t, int64(1), page.Total)
}

func TestSnapshotSearchConjunction(t *testing.T) {
	s := snapshotFixture()

	maxPrice := int64(300000)
	page := s.Search(SearchCriteria{
		City:        "Brazzaville",
		Type:        models.ListingTypeApartment,
		MaxPriceXOF: &maxPrice,
		Query:       "balcon",
	}, 12)

	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Appartement 3 pièces", page.Items[0].Title)
}

func TestSnapshotSearchPagination(t *testing.T) {
	s := snapshotFixture()

	page1 := s.Search(SearchCriteria{Page: 1, PageSize: 3}, 12)
	assert.Equal(t, int64(4), page1.Total)
	assert.Len(t, page1.Items, 3)

	page2 := s.Search(SearchCriteria{Page: 2, PageSize: 3}, 12)
	assert.Equal(t, int64(4), page2.Total)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, "Maison familiale", page2.Items[0].Title)

	// Past the end: empty page, total intact.
	page9 := s.Search(SearchCriteria{Page: 9, PageSize: 3}, 12)
	assert.Equal(t, int64(4), page9.Total)
	assert.Empty(t, page9.Items)
}

func TestSnapshotSearchPageClamping(t *testing.T) {
	s := snapshotFixture()

	// Page 0 and negative pages behave as page 1.
	zero := s.Search(SearchCriteria{Page: 0, PageSize: 2}, 12)
	neg := s.Search(SearchCriteria{Page: -3, PageSize: 2}, 12)
	one := s.Search(SearchCriteria{Page: 1, PageSize: 2}, 12)

	assert.Equal(t, one.Items, zero.Items)
	assert.Equal(t, one.Items, neg.Items)
}

func TestSnapshotReplaceResorts(t *testing.T) {
	s := NewListingSnapshot()
	older := models.Listing{ID: utils.NewSixID(), Title: "older", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := models.Listing{ID: utils.NewSixID(), Title: "newer", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}

	s.Replace([]models.Listing{older, newer})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "newer", items[0].Title)
	assert.Equal(t, 2, s.Len())
}
