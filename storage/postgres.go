package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"propwise/models"
	"propwise/search"
)

// ErrDuplicateName is returned when an owner already has a saved search with the same name.
var ErrDuplicateName = errors.New("saved search name already exists")

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	is_agent BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS cities (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS areas (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	city_id BIGINT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
	description TEXT NOT NULL DEFAULT '',
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	UNIQUE (name, city_id)
);

CREATE TABLE IF NOT EXISTS listings (
	id UUID PRIMARY KEY,
	agent_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT,
	price BIGINT NOT NULL,
	area_id BIGINT REFERENCES areas(id) ON DELETE SET NULL,
	purpose TEXT NOT NULL,
	property_type TEXT NOT NULL,
	bedrooms INTEGER,
	bathrooms INTEGER,
	area_size DOUBLE PRECISION NOT NULL DEFAULT 0,
	area_unit TEXT NOT NULL DEFAULT 'marla',
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	is_featured BOOLEAN NOT NULL DEFAULT FALSE,
	featured_until TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'active',
	sold_at TIMESTAMPTZ,
	main_image_url TEXT,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS amenities (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'other',
	area_id BIGINT REFERENCES areas(id) ON DELETE SET NULL,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS saved_searches (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	keyword TEXT,
	city_id BIGINT REFERENCES cities(id) ON DELETE SET NULL,
	property_type TEXT,
	purpose TEXT,
	min_price BIGINT,
	max_price BIGINT,
	min_bedrooms INTEGER,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_checked TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, name)
);

CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	recipient_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	message TEXT NOT NULL,
	link TEXT NOT NULL DEFAULT '',
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_listings_created ON listings(created_at);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status, created_at);
CREATE INDEX IF NOT EXISTS idx_listings_area_sold ON listings(area_id, sold_at) WHERE status = 'sold';
CREATE INDEX IF NOT EXISTS idx_listings_featured ON listings(featured_until) WHERE is_featured;
CREATE INDEX IF NOT EXISTS idx_saved_searches_active ON saved_searches(is_active);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);
`

// =============================================================================
// Saved searches
// =============================================================================

const savedSearchColumns = `
	s.id, s.user_id, s.name, s.keyword, s.city_id, s.property_type, s.purpose,
	s.min_price, s.max_price, s.min_bedrooms, s.is_active, s.last_checked, s.created_at`

func scanSavedSearch(row pgx.Row, extra ...any) (*models.SavedSearch, error) {
	var ss models.SavedSearch
	dest := []any{
		&ss.ID, &ss.UserID, &ss.Name, &ss.Keyword, &ss.CityID, &ss.PropertyType, &ss.Purpose,
		&ss.MinPrice, &ss.MaxPrice, &ss.MinBedrooms, &ss.IsActive, &ss.LastChecked, &ss.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &ss, nil
}

// ListActiveSavedSearches returns every active search with its owner loaded.
func (s *PostgresStore) ListActiveSavedSearches(ctx context.Context) ([]models.SavedSearch, error) {
	query := `
		SELECT ` + savedSearchColumns + `, u.id, u.username, u.email, u.is_agent
		FROM saved_searches s
		JOIN users u ON u.id = s.user_id
		WHERE s.is_active
		ORDER BY s.created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var searches []models.SavedSearch
	for rows.Next() {
		var owner models.User
		ss, err := scanSavedSearch(rows, &owner.ID, &owner.Username, &owner.Email, &owner.IsAgent)
		if err != nil {
			return nil, err
		}
		ss.Owner = &owner
		searches = append(searches, *ss)
	}
	return searches, rows.Err()
}

func (s *PostgresStore) ListSavedSearches(ctx context.Context, userID uuid.UUID) ([]models.SavedSearch, error) {
	query := `SELECT ` + savedSearchColumns + ` FROM saved_searches s WHERE s.user_id = $1 ORDER BY s.created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var searches []models.SavedSearch
	for rows.Next() {
		ss, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, *ss)
	}
	return searches, rows.Err()
}

func (s *PostgresStore) GetSavedSearch(ctx context.Context, id uuid.UUID) (*models.SavedSearch, error) {
	query := `SELECT ` + savedSearchColumns + ` FROM saved_searches s WHERE s.id = $1`

	ss, err := scanSavedSearch(s.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return ss, err
}

// CreateSavedSearch inserts a search. A name already used by the same owner
// yields ErrDuplicateName.
func (s *PostgresStore) CreateSavedSearch(ctx context.Context, ss *models.SavedSearch) error {
	query := `
		INSERT INTO saved_searches (
			id, user_id, name, keyword, city_id, property_type, purpose,
			min_price, max_price, min_bedrooms, is_active, last_checked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		ss.ID, ss.UserID, ss.Name, ss.Keyword, ss.CityID, ss.PropertyType, ss.Purpose,
		ss.MinPrice, ss.MaxPrice, ss.MinBedrooms, ss.IsActive, ss.LastChecked, ss.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateName
	}
	return err
}

// SetSavedSearchActive toggles a search owned by userID. Returns false when no such search exists.
func (s *PostgresStore) SetSavedSearchActive(ctx context.Context, id, userID uuid.UUID, active bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE saved_searches SET is_active = $3 WHERE id = $1 AND user_id = $2`, id, userID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteSavedSearch(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_searches WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateSavedSearchLastChecked advances last_checked in a single statement.
// It never moves the timestamp backwards.
func (s *PostgresStore) UpdateSavedSearchLastChecked(ctx context.Context, id uuid.UUID, checkedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE saved_searches SET last_checked = GREATEST(last_checked, $2) WHERE id = $1`, id, checkedAt)
	return err
}

// =============================================================================
// Listings
// =============================================================================

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.AgentID, &l.Title, &l.Description, &l.Price, &l.AreaID, &l.AreaName, &l.CityID, &l.CityName,
		&l.Purpose, &l.PropertyType, &l.Bedrooms, &l.Bathrooms, &l.AreaSize, &l.AreaUnit,
		&l.IsVerified, &l.IsFeatured, &l.FeaturedUntil, &l.Status, &l.SoldAt, &l.MainImageURL,
		&l.Lat, &l.Lng, &l.AreaLat, &l.AreaLng, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) queryListings(ctx context.Context, query string, args []interface{}) ([]models.Listing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// FindMatchingListings returns the distinct listings satisfying p, newest first.
func (s *PostgresStore) FindMatchingListings(ctx context.Context, p search.Predicate) ([]models.Listing, error) {
	query, args, err := matchingListingsQuery(p, 0)
	if err != nil {
		return nil, fmt.Errorf("build match query: %w", err)
	}
	return s.queryListings(ctx, query, args)
}

func (s *PostgresStore) SearchListings(ctx context.Context, p search.Predicate, limit, offset int) ([]models.Listing, error) {
	query, args, err := searchListingsQuery(p, s.now(), uint(max(limit, 0)), uint(max(offset, 0)))
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	return s.queryListings(ctx, query, args)
}

func (s *PostgresStore) ListMapListings(ctx context.Context, limit int) ([]models.Listing, error) {
	query, args, err := mapListingsQuery(uint(max(limit, 0)))
	if err != nil {
		return nil, fmt.Errorf("build map query: %w", err)
	}
	return s.queryListings(ctx, query, args)
}

func (s *PostgresStore) ListSoldListingsForArea(ctx context.Context, areaID int64, since time.Time) ([]models.Listing, error) {
	query, args, err := soldInAreaQuery(areaID, since)
	if err != nil {
		return nil, fmt.Errorf("build sold query: %w", err)
	}
	return s.queryListings(ctx, query, args)
}

func (s *PostgresStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	query, args, err := listingByIDQuery(id)
	if err != nil {
		return nil, fmt.Errorf("build listing query: %w", err)
	}
	l, err := scanListing(s.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// MarkListingSold closes an agent's listing. Returns false when the listing
// does not exist or belongs to another agent.
func (s *PostgresStore) MarkListingSold(ctx context.Context, id, agentID uuid.UUID, soldAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET status = $3, sold_at = $4, is_featured = FALSE, updated_at = NOW()
		WHERE id = $1 AND agent_id = $2`,
		id, agentID, models.ListingStatusSold, soldAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClearExpiredFeatured unsets the featured flag on up to limit listings whose
// promotion ended before now.
func (s *PostgresStore) ClearExpiredFeatured(ctx context.Context, now time.Time, limit int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET is_featured = FALSE, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM listings
			WHERE is_featured AND (featured_until IS NULL OR featured_until < $1)
			LIMIT $2
		)`, now, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =============================================================================
// Areas & amenities
// =============================================================================

func (s *PostgresStore) GetArea(ctx context.Context, id int64) (*models.Area, error) {
	var a models.Area
	err := s.pool.QueryRow(ctx, `
		SELECT a.id, a.name, a.city_id, c.name, a.description, a.latitude, a.longitude
		FROM areas a JOIN cities c ON c.id = a.city_id
		WHERE a.id = $1`, id).Scan(&a.ID, &a.Name, &a.CityID, &a.CityName, &a.Description, &a.Lat, &a.Lng)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) queryAmenities(ctx context.Context, query string, args ...any) ([]models.Amenity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var amenities []models.Amenity
	for rows.Next() {
		var a models.Amenity
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.AreaID, &a.Lat, &a.Lng); err != nil {
			return nil, err
		}
		amenities = append(amenities, a)
	}
	return amenities, rows.Err()
}

func (s *PostgresStore) ListAmenitiesWithCoordinates(ctx context.Context) ([]models.Amenity, error) {
	return s.queryAmenities(ctx, `
		SELECT id, name, category, area_id, latitude, longitude
		FROM amenities
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id`)
}

func (s *PostgresStore) ListAmenitiesForArea(ctx context.Context, areaID int64) ([]models.Amenity, error) {
	return s.queryAmenities(ctx, `
		SELECT id, name, category, area_id, latitude, longitude
		FROM amenities
		WHERE area_id = $1
		ORDER BY category, name`, areaID)
}

// =============================================================================
// Users & notifications
// =============================================================================

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `SELECT id, username, email, is_agent FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.IsAgent)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.RecipientID, n.Message, n.Link, n.IsRead, n.CreatedAt)
	return err
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient_id, message, link, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3`, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips the read flag. Returns false when the
// notification does not exist or belongs to someone else.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
