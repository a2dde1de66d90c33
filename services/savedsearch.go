package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"propwise/apperr"
	"propwise/identity"
	"propwise/models"
	"propwise/search"
	"propwise/storage"
)

const maxSavedSearchName = 100

type SavedSearchStore interface {
	CreateSavedSearch(ctx context.Context, ss *models.SavedSearch) error
	ListSavedSearches(ctx context.Context, userID uuid.UUID) ([]models.SavedSearch, error)
	SetSavedSearchActive(ctx context.Context, id, userID uuid.UUID, active bool) (bool, error)
	DeleteSavedSearch(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

// SavedSearchService manages a user's saved searches
type SavedSearchService struct {
	store SavedSearchStore
	now   func() time.Time
}

func NewSavedSearchService(store SavedSearchStore) *SavedSearchService {
	return &SavedSearchService{store: store, now: time.Now}
}

// Create saves the criteria in form under name for the principal. Numbers
// that fail to parse are dropped. The new search only alerts on listings
// created after this call.
func (s *SavedSearchService) Create(ctx context.Context, p identity.Principal, name string, form url.Values) (*models.SavedSearch, error) {
	if !p.Authenticated() {
		return nil, apperr.Forbidden("sign in to save searches")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("search name is required")
	}
	if len(name) > maxSavedSearchName {
		return nil, apperr.Validation(fmt.Sprintf("search name must be at most %d characters", maxSavedSearchName))
	}

	filter, err := search.ParseFilter(form)
	if err != nil {
		return nil, err
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, apperr.Validation("minimum price is above maximum price")
	}

	existing, err := s.store.ListSavedSearches(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list saved searches: %w", err)
	}
	for _, e := range existing {
		if e.Name == name {
			return nil, duplicateName()
		}
	}

	now := s.now().UTC()
	ss := &models.SavedSearch{
		ID:          uuid.New(),
		UserID:      p.UserID,
		Name:        name,
		IsActive:    true,
		LastChecked: now,
		CreatedAt:   now,
	}
	filter.Criteria(ss)

	if err := s.store.CreateSavedSearch(ctx, ss); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			return nil, duplicateName()
		}
		return nil, fmt.Errorf("create saved search: %w", err)
	}
	return ss, nil
}

func duplicateName() error {
	return apperr.Conflict("You already have a search with that name.")
}

func (s *SavedSearchService) List(ctx context.Context, p identity.Principal) ([]models.SavedSearch, error) {
	if !p.Authenticated() {
		return nil, apperr.Forbidden("sign in to view saved searches")
	}
	searches, err := s.store.ListSavedSearches(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list saved searches: %w", err)
	}
	if searches == nil {
		searches = []models.SavedSearch{}
	}
	return searches, nil
}

// SetActive pauses or resumes alerts for one of the principal's searches.
func (s *SavedSearchService) SetActive(ctx context.Context, p identity.Principal, id uuid.UUID, active bool) error {
	if !p.Authenticated() {
		return apperr.Forbidden("sign in to manage saved searches")
	}
	ok, err := s.store.SetSavedSearchActive(ctx, id, p.UserID, active)
	if err != nil {
		return fmt.Errorf("update saved search: %w", err)
	}
	if !ok {
		return apperr.NotFound("saved search not found")
	}
	return nil
}

func (s *SavedSearchService) Delete(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	if !p.Authenticated() {
		return apperr.Forbidden("sign in to manage saved searches")
	}
	ok, err := s.store.DeleteSavedSearch(ctx, id, p.UserID)
	if err != nil {
		return fmt.Errorf("delete saved search: %w", err)
	}
	if !ok {
		return apperr.NotFound("saved search not found")
	}
	return nil
}
