package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"propwise/apperr"
	"propwise/identity"
	"propwise/models"
	"propwise/search"
)

const searchPageSize = 20

type ListingStore interface {
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	SearchListings(ctx context.Context, p search.Predicate, limit, offset int) ([]models.Listing, error)
	MarkListingSold(ctx context.Context, id, agentID uuid.UUID, soldAt time.Time) (bool, error)
}

// ListingService handles the buyer-facing search and the agent's listing lifecycle
type ListingService struct {
	store ListingStore
	now   func() time.Time
}

func NewListingService(store ListingStore) *ListingService {
	return &ListingService{store: store, now: time.Now}
}

// Search returns one page of active listings matching form, featured-live
// listings first, then verified, then newest. page is 1-based.
func (s *ListingService) Search(ctx context.Context, form url.Values, page int) ([]models.Listing, error) {
	filter, err := search.ParseFilter(form)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	listings, err := s.store.SearchListings(ctx, filter.Predicate(), searchPageSize, (page-1)*searchPageSize)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return listings, nil
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, apperr.NotFound("listing not found")
	}
	return l, nil
}

// MarkSold closes a listing. Only the agent who owns it may do so.
func (s *ListingService) MarkSold(ctx context.Context, p identity.Principal, id uuid.UUID) (*models.Listing, error) {
	if !p.Authenticated() || !p.IsAgent {
		return nil, apperr.Forbidden("only agents can mark listings as sold")
	}

	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.AgentID != p.UserID {
		return nil, apperr.Forbidden("you do not own this listing")
	}
	if l.Status == models.ListingStatusSold {
		return l, nil
	}

	soldAt := s.now().UTC()
	ok, err := s.store.MarkListingSold(ctx, id, p.UserID, soldAt)
	if err != nil {
		return nil, fmt.Errorf("mark sold: %w", err)
	}
	if !ok {
		return nil, apperr.NotFound("listing not found")
	}

	l.Status = models.ListingStatusSold
	l.SoldAt = &soldAt
	l.IsFeatured = false
	return l, nil
}
