package api

import (
	"context"
	"net/http"
	"net/url"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/cors"

	"propwise/identity"
	"propwise/models"
	"propwise/services"
)

type Listings interface {
	Search(ctx context.Context, form url.Values, page int) ([]models.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	MarkSold(ctx context.Context, p identity.Principal, id uuid.UUID) (*models.Listing, error)
}

type SavedSearches interface {
	Create(ctx context.Context, p identity.Principal, name string, form url.Values) (*models.SavedSearch, error)
	List(ctx context.Context, p identity.Principal) ([]models.SavedSearch, error)
	SetActive(ctx context.Context, p identity.Principal, id uuid.UUID, active bool) error
	Delete(ctx context.Context, p identity.Principal, id uuid.UUID) error
}

type Insights interface {
	MapPins(ctx context.Context) ([]services.MapPin, error)
	NearbyAmenities(ctx context.Context, listingID uuid.UUID) ([]services.AmenityMarker, error)
	AreaAmenities(ctx context.Context, areaID int64) ([]services.AmenityMarker, error)
	PriceTrend(ctx context.Context, areaID int64) (*services.AreaTrend, error)
}

type Compare interface {
	Add(ctx context.Context, sessionID string, listingID uuid.UUID) ([]uuid.UUID, error)
	Remove(ctx context.Context, sessionID string, listingID uuid.UUID) ([]uuid.UUID, error)
	Listings(ctx context.Context, sessionID string) ([]models.Listing, error)
}

type Describer interface {
	Describe(ctx context.Context, p identity.Principal, facts services.ListingFacts) (string, error)
}

type Notifications interface {
	List(ctx context.Context, p identity.Principal, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, p identity.Principal, id uuid.UUID) error
}

// Services groups the handlers' dependencies. Nil members disable their routes.
type Services struct {
	Listings      Listings
	SavedSearches SavedSearches
	Insights      Insights
	Compare       Compare
	Describer     Describer
	Notifications Notifications
	Health        func(ctx context.Context) error
}

type Server struct {
	svc Services
}

func NewServer(svc Services) *Server {
	return &Server{svc: svc}
}

// Handler builds the router wrapped in CORS and the standard middleware chain.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	standard := alice.New(recoverPanic, logRequest, secureHeaders, withSession, withPrincipal)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	if s.svc.Listings != nil {
		a.HandleFunc("/listings", s.searchListings).Methods(http.MethodGet)
		a.HandleFunc("/listings/{id}", s.getListing).Methods(http.MethodGet)
		a.HandleFunc("/listings/{id}/sold", s.markSold).Methods(http.MethodPost)
	}
	if s.svc.Insights != nil {
		a.HandleFunc("/map/listings", s.mapListings).Methods(http.MethodGet)
		a.HandleFunc("/listings/{id}/amenities", s.nearbyAmenities).Methods(http.MethodGet)
		a.HandleFunc("/areas/{id}/amenities", s.areaAmenities).Methods(http.MethodGet)
		a.HandleFunc("/areas/{id}/price-trend", s.priceTrend).Methods(http.MethodGet)
	}
	if s.svc.SavedSearches != nil {
		a.HandleFunc("/saved-searches", s.listSavedSearches).Methods(http.MethodGet)
		a.HandleFunc("/saved-searches", s.createSavedSearch).Methods(http.MethodPost)
		a.HandleFunc("/saved-searches/{id}", s.updateSavedSearch).Methods(http.MethodPatch)
		a.HandleFunc("/saved-searches/{id}", s.deleteSavedSearch).Methods(http.MethodDelete)
	}
	if s.svc.Notifications != nil {
		a.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
		a.HandleFunc("/notifications/{id}/read", s.markNotificationRead).Methods(http.MethodPost)
	}
	if s.svc.Compare != nil {
		a.HandleFunc("/compare", s.compareListings).Methods(http.MethodGet)
		a.HandleFunc("/compare/{id}", s.compareAdd).Methods(http.MethodPost)
		a.HandleFunc("/compare/{id}", s.compareRemove).Methods(http.MethodDelete)
	}
	if s.svc.Describer != nil {
		a.HandleFunc("/describe", s.describe).Methods(http.MethodPost)
	}

	handler := standard.Then(r)
	if len(allowedOrigins) == 0 {
		return handler
	}

	// Identity headers are set by the gateway, never by a browser.
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
	})

	return c.Handler(handler)
}
