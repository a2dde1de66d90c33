package models

import (
	"time"

	"github.com/google/uuid"
)

type PropertyPurpose string

const (
	PurposeSale PropertyPurpose = "sale"
	PurposeRent PropertyPurpose = "rent"
)

func (p PropertyPurpose) Valid() bool {
	return p == PurposeSale || p == PurposeRent
}

type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypePlot       PropertyType = "plot"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeOther      PropertyType = "other"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeHouse, PropertyTypePlot, PropertyTypeApartment, PropertyTypeCommercial, PropertyTypeOther:
		return true
	}
	return false
}

// AreaUnit is the unit a listing's size is declared in.
type AreaUnit string

const (
	AreaUnitMarla  AreaUnit = "marla"
	AreaUnitKanal  AreaUnit = "kanal"
	AreaUnitSqFt   AreaUnit = "sq_ft"
	AreaUnitSqYard AreaUnit = "sq_yard"
)

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusExpired ListingStatus = "expired"
)

type AmenityCategory string

const (
	AmenitySchool     AmenityCategory = "school"
	AmenityHospital   AmenityCategory = "hospital"
	AmenityPark       AmenityCategory = "park"
	AmenityMosque     AmenityCategory = "mosque"
	AmenityMarket     AmenityCategory = "market"
	AmenityRestaurant AmenityCategory = "restaurant"
	AmenityBank       AmenityCategory = "bank"
	AmenityTransport  AmenityCategory = "transport"
	AmenityOther      AmenityCategory = "other"
)

// User is the subset of an account the alert pipeline needs
type User struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Username string    `json:"username" db:"username"`
	Email    string    `json:"email" db:"email"`
	IsAgent  bool      `json:"is_agent" db:"is_agent"`
}

type City struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Area is a neighbourhood inside a city, e.g. "DHA Phase 6, Lahore"
type Area struct {
	ID          int64    `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	CityID      int64    `json:"city_id" db:"city_id"`
	CityName    string   `json:"city_name" db:"city_name"`
	Description string   `json:"description" db:"description"`
	Lat         *float64 `json:"lat" db:"latitude"`
	Lng         *float64 `json:"lng" db:"longitude"`
}

func (a *Area) Label() string {
	if a.CityName == "" {
		return a.Name
	}
	return a.Name + ", " + a.CityName
}

func (a *Area) HasCoordinates() bool {
	return a.Lat != nil && a.Lng != nil
}

// Listing is a property offered for sale or rent by an agent
type Listing struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	AgentID       uuid.UUID       `json:"agent_id" db:"agent_id"`
	Title         string          `json:"title" db:"title"`
	Description   string          `json:"description" db:"description"`
	Price         int64           `json:"price" db:"price"`
	AreaID        *int64          `json:"area_id" db:"area_id"`
	AreaName      string          `json:"area_name" db:"area_name"`
	CityID        *int64          `json:"city_id" db:"city_id"`
	CityName      string          `json:"city_name" db:"city_name"`
	Purpose       PropertyPurpose `json:"purpose" db:"purpose"`
	PropertyType  PropertyType    `json:"property_type" db:"property_type"`
	Bedrooms      *int            `json:"bedrooms" db:"bedrooms"`
	Bathrooms     *int            `json:"bathrooms" db:"bathrooms"`
	AreaSize      float64         `json:"area_size" db:"area_size"`
	AreaUnit      AreaUnit        `json:"area_unit" db:"area_unit"`
	IsVerified    bool            `json:"is_verified" db:"is_verified"`
	IsFeatured    bool            `json:"is_featured" db:"is_featured"`
	FeaturedUntil *time.Time      `json:"featured_until" db:"featured_until"`
	Status        ListingStatus   `json:"status" db:"status"`
	SoldAt        *time.Time      `json:"sold_at" db:"sold_at"`
	MainImageURL  string          `json:"main_image_url" db:"main_image_url"`
	Lat           *float64        `json:"lat" db:"latitude"`
	Lng           *float64        `json:"lng" db:"longitude"`
	AreaLat       *float64        `json:"area_lat,omitempty" db:"area_latitude"`
	AreaLng       *float64        `json:"area_lng,omitempty" db:"area_longitude"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

func (l *Listing) HasCoordinates() bool {
	return l.Lat != nil && l.Lng != nil
}

// HasAreaCoordinates reports whether the listing's area has a map location
func (l *Listing) HasAreaCoordinates() bool {
	return l.AreaLat != nil && l.AreaLng != nil
}

// FeaturedLive reports whether the listing is featured and the promotion has not expired
func (l *Listing) FeaturedLive(now time.Time) bool {
	return l.IsFeatured && l.FeaturedUntil != nil && !l.FeaturedUntil.Before(now)
}

// AreaLabel renders "Area, City" for display
func (l *Listing) AreaLabel() string {
	switch {
	case l.AreaName == "":
		return l.CityName
	case l.CityName == "":
		return l.AreaName
	}
	return l.AreaName + ", " + l.CityName
}

// Amenity is a point of interest (school, hospital, park...) near an area
type Amenity struct {
	ID       int64           `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	Category AmenityCategory `json:"category" db:"category"`
	AreaID   *int64          `json:"area_id" db:"area_id"`
	Lat      *float64        `json:"lat" db:"latitude"`
	Lng      *float64        `json:"lng" db:"longitude"`
}

func (a *Amenity) HasCoordinates() bool {
	return a.Lat != nil && a.Lng != nil
}

// SavedSearch is a user's persisted search criteria. Optional fields are nil when unset.
type SavedSearch struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	UserID       uuid.UUID        `json:"user_id" db:"user_id"`
	Name         string           `json:"name" db:"name"`
	Keyword      *string          `json:"keyword" db:"keyword"`
	CityID       *int64           `json:"city_id" db:"city_id"`
	PropertyType *PropertyType    `json:"property_type" db:"property_type"`
	Purpose      *PropertyPurpose `json:"purpose" db:"purpose"`
	MinPrice     *int64           `json:"min_price" db:"min_price"`
	MaxPrice     *int64           `json:"max_price" db:"max_price"`
	MinBedrooms  *int             `json:"min_bedrooms" db:"min_bedrooms"`
	IsActive     bool             `json:"is_active" db:"is_active"`
	LastChecked  time.Time        `json:"last_checked" db:"last_checked"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`

	// Owner is populated by joins when the search is loaded for alerting
	Owner *User `json:"-" db:"-"`
}

// Notification is an in-app message. Only IsRead changes after creation.
type Notification struct {
	ID          uuid.UUID `json:"id" db:"id"`
	RecipientID uuid.UUID `json:"recipient_id" db:"recipient_id"`
	Message     string    `json:"message" db:"message"`
	Link        string    `json:"link" db:"link"`
	IsRead      bool      `json:"is_read" db:"is_read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
