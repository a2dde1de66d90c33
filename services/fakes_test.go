package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"propwise/models"
	"propwise/search"
	"propwise/storage"
)

// memStore is an in-memory stand-in for the Postgres store.
type memStore struct {
	mu            sync.Mutex
	searches      []models.SavedSearch
	listings      []models.Listing
	areas         map[int64]models.Area
	amenities     []models.Amenity
	notifications []models.Notification

	listErr   error
	updateErr error
	findCalls int
	// failFindCall makes the n-th FindMatchingListings call fail (1-based)
	failFindCall int
}

func newMemStore() *memStore {
	return &memStore{areas: map[int64]models.Area{}}
}

func (s *memStore) ListActiveSavedSearches(_ context.Context) ([]models.SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.SavedSearch
	for _, ss := range s.searches {
		if ss.IsActive {
			out = append(out, ss)
		}
	}
	return out, nil
}

// FindMatchingListings evaluates the predicate in memory.
func (s *memStore) FindMatchingListings(_ context.Context, p search.Predicate) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findCalls == s.failFindCall {
		return nil, errBoom
	}
	var out []models.Listing
	for _, l := range s.listings {
		if p.Matches(&l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) UpdateSavedSearchLastChecked(_ context.Context, id uuid.UUID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.searches {
		if s.searches[i].ID == id && t.After(s.searches[i].LastChecked) {
			s.searches[i].LastChecked = t
		}
	}
	return nil
}

func (s *memStore) search(id uuid.UUID) models.SavedSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ss := range s.searches {
		if ss.ID == id {
			return ss
		}
	}
	return models.SavedSearch{}
}

func (s *memStore) CreateSavedSearch(_ context.Context, ss *models.SavedSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.searches {
		if e.UserID == ss.UserID && e.Name == ss.Name {
			return storage.ErrDuplicateName
		}
	}
	s.searches = append(s.searches, *ss)
	return nil
}

func (s *memStore) ListSavedSearches(_ context.Context, userID uuid.UUID) ([]models.SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SavedSearch
	for _, ss := range s.searches {
		if ss.UserID == userID {
			out = append(out, ss)
		}
	}
	return out, nil
}

func (s *memStore) SetSavedSearchActive(_ context.Context, id, userID uuid.UUID, active bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.searches {
		if s.searches[i].ID == id && s.searches[i].UserID == userID {
			s.searches[i].IsActive = active
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) DeleteSavedSearch(_ context.Context, id, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.searches {
		if s.searches[i].ID == id && s.searches[i].UserID == userID {
			s.searches = append(s.searches[:i], s.searches[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) GetListing(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.ID == id {
			l := l
			return &l, nil
		}
	}
	return nil, nil
}

func (s *memStore) SearchListings(_ context.Context, p search.Predicate, limit, offset int) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Listing
	for _, l := range s.listings {
		if l.Status == models.ListingStatusActive && p.Matches(&l) {
			out = append(out, l)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkListingSold(_ context.Context, id, agentID uuid.UUID, soldAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.listings {
		l := &s.listings[i]
		if l.ID == id && l.AgentID == agentID {
			l.Status = models.ListingStatusSold
			l.SoldAt = &soldAt
			l.IsFeatured = false
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) GetArea(_ context.Context, id int64) (*models.Area, error) {
	a, ok := s.areas[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memStore) ListMapListings(_ context.Context, limit int) ([]models.Listing, error) {
	out := append([]models.Listing(nil), s.listings...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListAmenitiesWithCoordinates(_ context.Context) ([]models.Amenity, error) {
	var out []models.Amenity
	for _, a := range s.amenities {
		if a.HasCoordinates() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ListAmenitiesForArea(_ context.Context, areaID int64) ([]models.Amenity, error) {
	var out []models.Amenity
	for _, a := range s.amenities {
		if a.AreaID != nil && *a.AreaID == areaID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ListSoldListingsForArea(_ context.Context, areaID int64, since time.Time) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range s.listings {
		if l.AreaID != nil && *l.AreaID == areaID && l.Status == models.ListingStatusSold &&
			l.SoldAt != nil && !l.SoldAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) ListNotifications(_ context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) MarkNotificationRead(_ context.Context, id, recipientID uuid.UUID) (bool, error) {
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].RecipientID == recipientID {
			s.notifications[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

// memKV is an in-memory KV.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]time.Duration
	err  error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (k *memKV) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return nil, k.err
	}
	return k.data[key], nil
}

func (k *memKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return k.err
	}
	k.data[key] = value
	k.ttl[key] = ttl
	return nil
}

func (k *memKV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

var errBoom = errors.New("boom")
