package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"propwise/apperr"
	"propwise/identity"
	"propwise/models"
)

const (
	CompareLimit = 4
	compareTTL   = 14 * 24 * time.Hour
)

// CompareList is an insertion-ordered set of listing IDs. Adding to a full
// list evicts the oldest entry.
type CompareList struct {
	ids   []uuid.UUID
	limit int
}

func NewCompareList(limit int, ids ...uuid.UUID) *CompareList {
	l := &CompareList{limit: limit}
	for _, id := range ids {
		l.Add(id)
	}
	return l
}

// Add appends id unless present. It returns the evicted ID, if any.
func (l *CompareList) Add(id uuid.UUID) (evicted uuid.UUID, didEvict bool) {
	if l.Contains(id) {
		return uuid.Nil, false
	}
	if len(l.ids) >= l.limit {
		evicted = l.ids[0]
		l.ids = l.ids[1:]
		didEvict = true
	}
	l.ids = append(l.ids, id)
	return evicted, didEvict
}

func (l *CompareList) Remove(id uuid.UUID) bool {
	for i, existing := range l.ids {
		if existing == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (l *CompareList) Contains(id uuid.UUID) bool {
	for _, existing := range l.ids {
		if existing == id {
			return true
		}
	}
	return false
}

func (l *CompareList) IDs() []uuid.UUID {
	out := make([]uuid.UUID, len(l.ids))
	copy(out, l.ids)
	return out
}

func (l *CompareList) Len() int {
	return len(l.ids)
}

// CompareService keeps a per-session comparison list in the session store.
type CompareService struct {
	listings ListingStore
	sessions KV
}

func NewCompareService(listings ListingStore, sessions KV) *CompareService {
	return &CompareService{listings: listings, sessions: sessions}
}

func compareKey(sessionID string) string {
	return "compare:" + identity.Fingerprint(sessionID)
}

func (s *CompareService) load(ctx context.Context, sessionID string) (*CompareList, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Validation("missing session")
	}
	raw, err := s.sessions.Get(ctx, compareKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load compare list: %w", err)
	}
	var ids []uuid.UUID
	if raw != nil {
		if err := json.Unmarshal(raw, &ids); err != nil {
			ids = nil
		}
	}
	return NewCompareList(CompareLimit, ids...), nil
}

func (s *CompareService) save(ctx context.Context, sessionID string, l *CompareList) error {
	raw, err := json.Marshal(l.IDs())
	if err != nil {
		return err
	}
	if err := s.sessions.Set(ctx, compareKey(sessionID), raw, compareTTL); err != nil {
		return fmt.Errorf("save compare list: %w", err)
	}
	return nil
}

// Add puts a listing on the session's list and returns the resulting IDs.
func (s *CompareService) Add(ctx context.Context, sessionID string, listingID uuid.UUID) ([]uuid.UUID, error) {
	l, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if listing == nil {
		return nil, apperr.NotFound("listing not found")
	}

	l.Add(listingID)
	if err := s.save(ctx, sessionID, l); err != nil {
		return nil, err
	}
	return l.IDs(), nil
}

func (s *CompareService) Remove(ctx context.Context, sessionID string, listingID uuid.UUID) ([]uuid.UUID, error) {
	l, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if l.Remove(listingID) {
		if err := s.save(ctx, sessionID, l); err != nil {
			return nil, err
		}
	}
	return l.IDs(), nil
}

// Listings loads the compared listings in the order they were added.
// Listings deleted since are dropped.
func (s *CompareService) Listings(ctx context.Context, sessionID string) ([]models.Listing, error) {
	l, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Listing, 0, l.Len())
	for _, id := range l.IDs() {
		listing, err := s.listings.GetListing(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get listing: %w", err)
		}
		if listing != nil {
			out = append(out, *listing)
		}
	}
	return out, nil
}
