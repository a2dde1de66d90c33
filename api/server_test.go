package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwise/apperr"
	"propwise/identity"
	"propwise/models"
	"propwise/services"
)

type fakeListings struct {
	lastForm url.Values
	lastPage int
	soldBy   identity.Principal
	soldErr  error
}

func (f *fakeListings) Search(ctx context.Context, form url.Values, page int) ([]models.Listing, error) {
	f.lastForm = form
	f.lastPage = page
	return []models.Listing{{Title: "Corner plot"}}, nil
}

func (f *fakeListings) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return nil, apperr.NotFound("listing not found")
}

func (f *fakeListings) MarkSold(ctx context.Context, p identity.Principal, id uuid.UUID) (*models.Listing, error) {
	f.soldBy = p
	if f.soldErr != nil {
		return nil, f.soldErr
	}
	return &models.Listing{ID: id, Status: models.ListingStatusSold}, nil
}

type fakeSavedSearches struct {
	name    string
	form    url.Values
	owner   identity.Principal
	active  *bool
	created *models.SavedSearch
	err     error
}

func (f *fakeSavedSearches) Create(ctx context.Context, p identity.Principal, name string, form url.Values) (*models.SavedSearch, error) {
	f.owner, f.name, f.form = p, name, form
	if f.err != nil {
		return nil, f.err
	}
	f.created = &models.SavedSearch{ID: uuid.New(), UserID: p.UserID, Name: name}
	return f.created, nil
}

func (f *fakeSavedSearches) List(ctx context.Context, p identity.Principal) ([]models.SavedSearch, error) {
	if !p.Authenticated() {
		return nil, apperr.Forbidden("sign in to view saved searches")
	}
	return []models.SavedSearch{}, nil
}

func (f *fakeSavedSearches) SetActive(ctx context.Context, p identity.Principal, id uuid.UUID, active bool) error {
	f.active = &active
	return nil
}

func (f *fakeSavedSearches) Delete(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	return apperr.NotFound("saved search not found")
}

type fakeInsights struct{}

func (fakeInsights) MapPins(ctx context.Context) ([]services.MapPin, error) {
	return []services.MapPin{{Title: "House", Lat: 31.5, Lng: 74.3, DetailURL: "/properties/1/"}}, nil
}

func (fakeInsights) NearbyAmenities(ctx context.Context, listingID uuid.UUID) ([]services.AmenityMarker, error) {
	return []services.AmenityMarker{}, nil
}

func (fakeInsights) AreaAmenities(ctx context.Context, areaID int64) ([]services.AmenityMarker, error) {
	return []services.AmenityMarker{{Name: "Park"}}, nil
}

func (fakeInsights) PriceTrend(ctx context.Context, areaID int64) (*services.AreaTrend, error) {
	return nil, apperr.NotFound("area not found")
}

type fakeCompare struct {
	sessions []string
}

func (f *fakeCompare) Add(ctx context.Context, sessionID string, listingID uuid.UUID) ([]uuid.UUID, error) {
	f.sessions = append(f.sessions, sessionID)
	return []uuid.UUID{listingID}, nil
}

func (f *fakeCompare) Remove(ctx context.Context, sessionID string, listingID uuid.UUID) ([]uuid.UUID, error) {
	return []uuid.UUID{}, nil
}

func (f *fakeCompare) Listings(ctx context.Context, sessionID string) ([]models.Listing, error) {
	f.sessions = append(f.sessions, sessionID)
	return []models.Listing{}, nil
}

type fakeDescriber struct{ err error }

func (f fakeDescriber) Describe(ctx context.Context, p identity.Principal, facts services.ListingFacts) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "A lovely " + facts.PropertyType + " in " + facts.City, nil
}

type testServer struct {
	listings *fakeListings
	searches *fakeSavedSearches
	compare  *fakeCompare
	handler  http.Handler
}

func newTestServer(describer Describer) *testServer {
	ts := &testServer{
		listings: &fakeListings{},
		searches: &fakeSavedSearches{},
		compare:  &fakeCompare{},
	}
	ts.handler = NewServer(Services{
		Listings:      ts.listings,
		SavedSearches: ts.searches,
		Insights:      fakeInsights{},
		Compare:       ts.compare,
		Describer:     describer,
	}).Handler([]string{"http://localhost:3000"})
	return ts
}

func signedIn(req *http.Request, id uuid.UUID, agent bool) *http.Request {
	req.Header.Set(HeaderUserID, id.String())
	req.Header.Set(HeaderUsername, "ayesha")
	if agent {
		req.Header.Set(HeaderIsAgent, "true")
	}
	return req
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthReportsUnavailable(t *testing.T) {
	h := NewServer(Services{Health: func(ctx context.Context) error { return errors.New("down") }}).Handler(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchListingsPassesQueryAndPage(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/listings?city=3&price_max=5,000,000&page=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", ts.listings.lastForm.Get("city"))
	assert.Equal(t, "5,000,000", ts.listings.lastForm.Get("price_max"))
	assert.Equal(t, 2, ts.listings.lastPage)
	assert.Contains(t, rec.Body.String(), "Corner plot")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestGetListingNotFound(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/listings/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "listing not found", body["error"])
	assert.Equal(t, "NOT_FOUND", body["kind"])
}

func TestInvalidIDIsBadRequest(t *testing.T) {
	ts := newTestServer(nil)
	assert.Equal(t, http.StatusBadRequest, ts.do(httptest.NewRequest(http.MethodGet, "/api/listings/not-a-uuid", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(httptest.NewRequest(http.MethodGet, "/api/areas/abc/amenities", nil)).Code)
}

func TestMarkSoldUsesPrincipalFromHeaders(t *testing.T) {
	ts := newTestServer(nil)
	agentID := uuid.New()
	req := signedIn(httptest.NewRequest(http.MethodPost, "/api/listings/"+uuid.NewString()+"/sold", nil), agentID, true)

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, agentID, ts.listings.soldBy.UserID)
	assert.True(t, ts.listings.soldBy.IsAgent)
	assert.Equal(t, "ayesha", ts.listings.soldBy.Username)
}

func TestMarkSoldForbidden(t *testing.T) {
	ts := newTestServer(nil)
	ts.listings.soldErr = apperr.Forbidden("you do not own this listing")

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/listings/"+uuid.NewString()+"/sold", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, ts.listings.soldBy.Authenticated())
}

func TestMapListings(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/map/listings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var pins []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pins))
	require.Len(t, pins, 1)
	assert.Equal(t, "/properties/1/", pins[0]["detail_url"])
}

func TestPriceTrendNotFound(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/areas/9/price-trend", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSavedSearchFromForm(t *testing.T) {
	ts := newTestServer(nil)
	userID := uuid.New()
	form := url.Values{"name": {"DHA houses"}, "city": {"1"}, "price_min": {"1,000,000"}}
	req := httptest.NewRequest(http.MethodPost, "/api/saved-searches", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := ts.do(signedIn(req, userID, false))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "DHA houses", ts.searches.name)
	assert.Equal(t, "1,000,000", ts.searches.form.Get("price_min"))
	assert.Equal(t, userID, ts.searches.owner.UserID)
}

func TestCreateSavedSearchConflict(t *testing.T) {
	ts := newTestServer(nil)
	ts.searches.err = apperr.Conflict("You already have a search with that name.")
	req := httptest.NewRequest(http.MethodPost, "/api/saved-searches?name=dup", nil)

	rec := ts.do(signedIn(req, uuid.New(), false))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "You already have a search with that name.")
}

func TestListSavedSearchesAnonymous(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/saved-searches", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateSavedSearch(t *testing.T) {
	ts := newTestServer(nil)
	path := "/api/saved-searches/" + uuid.NewString()

	rec := ts.do(signedIn(httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"is_active":false}`)), uuid.New(), false))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, ts.searches.active)
	assert.False(t, *ts.searches.active)

	rec = ts.do(signedIn(httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{}`)), uuid.New(), false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSavedSearchNotFound(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(signedIn(httptest.NewRequest(http.MethodDelete, "/api/saved-searches/"+uuid.NewString(), nil), uuid.New(), false))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareIssuesAndReusesSessionCookie(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/compare/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/compare", nil)
	req.AddCookie(cookies[0])
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	require.Len(t, ts.compare.sessions, 2)
	assert.Equal(t, ts.compare.sessions[0], ts.compare.sessions[1])
}

func TestDescribe(t *testing.T) {
	ts := newTestServer(fakeDescriber{})
	body := `{"property_type":"house","city":"Lahore"}`
	rec := ts.do(signedIn(httptest.NewRequest(http.MethodPost, "/api/describe", strings.NewReader(body)), uuid.New(), true))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"description":"A lovely house in Lahore"}`, rec.Body.String())
}

func TestDescribeUpstreamFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(fakeDescriber{err: apperr.External("could not generate a description", errors.New("quota"))})
	rec := ts.do(signedIn(httptest.NewRequest(http.MethodPost, "/api/describe", strings.NewReader(`{}`)), uuid.New(), true))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "quota")
}

func TestDescribeRouteDisabledWithoutDescriber(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/describe", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	h := NewServer(Services{Health: func(ctx context.Context) error { panic("boom") }}).Handler(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/map/listings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec := ts.do(req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsIdentityHeaders(t *testing.T) {
	ts := newTestServer(nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/saved-searches", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", HeaderUserID)

	rec := ts.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	h := NewServer(Services{Health: func(ctx context.Context) error { return nil }}).Handler(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardDropsCredentials(t *testing.T) {
	h := NewServer(Services{Health: func(ctx context.Context) error { return nil }}).Handler([]string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://any.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
