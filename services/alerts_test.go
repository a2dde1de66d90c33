package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwise/models"
	"propwise/notify"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []notify.Message
	err   error
	panic bool
}

func (d *recordingDispatcher) Send(_ context.Context, msg notify.Message) error {
	if d.panic {
		panic("smtp client nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

var (
	t0    = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	buyer = models.User{ID: uuid.New(), Username: "bilal", Email: "bilal@example.com"}
)

func savedSearch(name string, lastChecked time.Time) models.SavedSearch {
	return models.SavedSearch{
		ID:          uuid.New(),
		UserID:      buyer.ID,
		Name:        name,
		IsActive:    true,
		LastChecked: lastChecked,
		Owner:       &buyer,
	}
}

func newListing(title string, created time.Time) models.Listing {
	return models.Listing{
		ID:           uuid.New(),
		Title:        title,
		Price:        25_000_000,
		Purpose:      models.PurposeSale,
		PropertyType: models.PropertyTypeHouse,
		Status:       models.ListingStatusActive,
		CreatedAt:    created,
	}
}

func newScanner(store *memStore, d notify.Dispatcher, now time.Time) *AlertScanner {
	s := NewAlertScanner(store, d, notify.Composer{Domain: "propwise.pk", Currency: "PKR"})
	s.now = func() time.Time { return now }
	return s
}

func TestScanNoActiveSearches(t *testing.T) {
	store := newMemStore()
	inactive := savedSearch("paused", t0)
	inactive.IsActive = false
	store.searches = []models.SavedSearch{inactive}

	d := &recordingDispatcher{}
	res, err := newScanner(store, d, t0.Add(time.Hour)).Scan(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Checked)
	assert.Zero(t, res.Sent)
	assert.Empty(t, d.sent)
	assert.Equal(t, t0, store.search(inactive.ID).LastChecked)
}

func TestScanAnchorOnlyMatchesNewListings(t *testing.T) {
	store := newMemStore()
	ss := savedSearch("anything new", t0)
	store.searches = []models.SavedSearch{ss}
	store.listings = []models.Listing{
		newListing("before", t0.Add(-time.Minute)),
		newListing("at anchor", t0),
		newListing("after 1", t0.Add(time.Minute)),
		newListing("after 2", t0.Add(2*time.Minute)),
	}

	d := &recordingDispatcher{}
	scanAt := t0.Add(time.Hour)
	res, err := newScanner(store, d, scanAt).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, d.sent, 1)

	msg := d.sent[0]
	assert.Equal(t, "PropWise Alert: 2 New Properties Match Your Search!", msg.Subject)
	assert.Equal(t, buyer.Email, msg.To.Email)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, 2, msg.Alert.Count)
	assert.Equal(t, "anything new", msg.Alert.SearchName)

	assert.Equal(t, scanAt, store.search(ss.ID).LastChecked)
}

func TestScanAdvancesLastCheckedWithoutMatches(t *testing.T) {
	store := newMemStore()
	ss := savedSearch("nothing", t0)
	store.searches = []models.SavedSearch{ss}
	store.listings = []models.Listing{newListing("old", t0.Add(-time.Hour))}

	scanAt := t0.Add(time.Hour)
	d := &recordingDispatcher{}
	res, err := newScanner(store, d, scanAt).Scan(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Matched)
	assert.Empty(t, d.sent)
	assert.True(t, res.Outcomes[0].Advanced)
	assert.Equal(t, scanAt, store.search(ss.ID).LastChecked)
}

func TestScanSecondPassSendsNothing(t *testing.T) {
	store := newMemStore()
	store.searches = []models.SavedSearch{savedSearch("dha", t0)}
	store.listings = []models.Listing{newListing("new", t0.Add(time.Minute))}

	d := &recordingDispatcher{}
	_, err := newScanner(store, d, t0.Add(time.Hour)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	res, err := newScanner(store, d, t0.Add(time.Hour+time.Second)).Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.Len(t, d.sent, 1)
}

func TestScanLeavesMidPassListingForNextPass(t *testing.T) {
	store := newMemStore()
	ss := savedSearch("dha", t0)
	store.searches = []models.SavedSearch{ss}
	scanAt := t0.Add(time.Hour)
	store.listings = []models.Listing{newListing("late", scanAt.Add(time.Second))}

	d := &recordingDispatcher{}
	res, err := newScanner(store, d, scanAt).Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Matched)

	res, err = newScanner(store, d, scanAt.Add(time.Hour)).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestScanFiltersByCriteria(t *testing.T) {
	store := newMemStore()
	ss := savedSearch("rentals", t0)
	rent := models.PurposeRent
	ss.Purpose = &rent
	store.searches = []models.SavedSearch{ss}

	forRent := newListing("flat", t0.Add(time.Minute))
	forRent.Purpose = models.PurposeRent
	store.listings = []models.Listing{newListing("house", t0.Add(time.Minute)), forRent}

	d := &recordingDispatcher{}
	_, err := newScanner(store, d, t0.Add(time.Hour)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	require.Len(t, d.sent[0].Alert.Listings, 1)
	assert.Equal(t, forRent.ID, d.sent[0].Alert.Listings[0].ID)
}

func TestScanDispatchFailureStillAdvances(t *testing.T) {
	store := newMemStore()
	a := savedSearch("a", t0)
	b := savedSearch("b", t0)
	store.searches = []models.SavedSearch{a, b}
	store.listings = []models.Listing{newListing("new", t0.Add(time.Minute))}

	scanAt := t0.Add(time.Hour)
	d := &recordingDispatcher{err: errBoom}
	res, err := newScanner(store, d, scanAt).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Matched)
	assert.Zero(t, res.Sent)
	assert.Equal(t, 2, res.Errors)
	assert.ErrorIs(t, res.Outcomes[0].Err, errBoom)
	assert.Equal(t, scanAt, store.search(a.ID).LastChecked)
	assert.Equal(t, scanAt, store.search(b.ID).LastChecked)
}

func TestScanDispatchPanicIsIsolated(t *testing.T) {
	store := newMemStore()
	ss := savedSearch("a", t0)
	store.searches = []models.SavedSearch{ss}
	store.listings = []models.Listing{newListing("new", t0.Add(time.Minute))}

	res, err := newScanner(store, &recordingDispatcher{panic: true}, t0.Add(time.Hour)).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Contains(t, res.Outcomes[0].Err.Error(), "panic")
	assert.True(t, res.Outcomes[0].Advanced)
}

func TestScanQueryFailureIsIsolated(t *testing.T) {
	store := newMemStore()
	a := savedSearch("a", t0)
	b := savedSearch("b", t0)
	store.searches = []models.SavedSearch{a, b}
	store.listings = []models.Listing{newListing("new", t0.Add(time.Minute))}
	store.failFindCall = 1

	scanAt := t0.Add(time.Hour)
	d := &recordingDispatcher{}
	res, err := newScanner(store, d, scanAt).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Sent)
	assert.False(t, res.Outcomes[0].Advanced)
	assert.Equal(t, t0, store.search(a.ID).LastChecked, "failed query retries the same window")
	assert.Equal(t, scanAt, store.search(b.ID).LastChecked)
}

func TestScanLoadFailure(t *testing.T) {
	store := newMemStore()
	store.listErr = errBoom

	_, err := newScanner(store, &recordingDispatcher{}, t0).Scan(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestScanMissingOwner(t *testing.T) {
	store := newMemStore()
	ss := savedSearch("orphan", t0)
	ss.Owner = nil
	store.searches = []models.SavedSearch{ss}
	store.listings = []models.Listing{newListing("new", t0.Add(time.Minute))}

	res, err := newScanner(store, &recordingDispatcher{}, t0.Add(time.Hour)).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Zero(t, res.Sent)
}

func TestScanStopsOnCancelledContext(t *testing.T) {
	store := newMemStore()
	store.searches = []models.SavedSearch{savedSearch("a", t0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newScanner(store, &recordingDispatcher{}, t0.Add(time.Hour)).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Checked)
}
