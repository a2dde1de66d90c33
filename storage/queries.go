package storage

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"propwise/models"
	"propwise/search"
)

var pg = goqu.Dialect("postgres")

// listingColumns is the select list scanned by scanListing.
var listingColumns = []interface{}{
	goqu.I("l.id"),
	goqu.I("l.agent_id"),
	goqu.I("l.title"),
	goqu.L("COALESCE(l.description, '')"),
	goqu.I("l.price"),
	goqu.I("l.area_id"),
	goqu.L("COALESCE(a.name, '')"),
	goqu.I("a.city_id"),
	goqu.L("COALESCE(c.name, '')"),
	goqu.I("l.purpose"),
	goqu.I("l.property_type"),
	goqu.I("l.bedrooms"),
	goqu.I("l.bathrooms"),
	goqu.I("l.area_size"),
	goqu.I("l.area_unit"),
	goqu.I("l.is_verified"),
	goqu.I("l.is_featured"),
	goqu.I("l.featured_until"),
	goqu.I("l.status"),
	goqu.I("l.sold_at"),
	goqu.L("COALESCE(l.main_image_url, '')"),
	goqu.I("l.latitude"),
	goqu.I("l.longitude"),
	goqu.I("a.latitude"),
	goqu.I("a.longitude"),
	goqu.I("l.created_at"),
	goqu.I("l.updated_at"),
}

func listingsFrom() *goqu.SelectDataset {
	return pg.From(goqu.T("listings").As("l")).
		LeftJoin(goqu.T("areas").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("l.area_id")))).
		LeftJoin(goqu.T("cities").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("a.city_id")))).
		Select(listingColumns...)
}

// matchingListingsQuery selects the distinct listings satisfying a saved-search predicate.
func matchingListingsQuery(p search.Predicate, limit uint) (string, []interface{}, error) {
	ds := listingsFrom().
		Distinct().
		Where(p.Expression()).
		Order(goqu.I("l.created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	return ds.Prepared(true).ToSQL()
}

// featuredLive orders promoted listings first; an expired promotion counts as not featured.
func featuredLive(now time.Time) exp.LiteralExpression {
	return goqu.L("COALESCE(l.is_featured AND l.featured_until >= ?, FALSE)", now)
}

// searchListingsQuery selects active listings for the search page, featured-live
// first, then verified, then newest.
func searchListingsQuery(p search.Predicate, now time.Time, limit, offset uint) (string, []interface{}, error) {
	ds := listingsFrom().
		Where(goqu.I("l.status").Eq(string(models.ListingStatusActive))).
		Order(
			featuredLive(now).Desc(),
			goqu.I("l.is_verified").Desc(),
			goqu.I("l.created_at").Desc(),
		)
	if p.Len() > 0 {
		ds = ds.Where(p.Expression())
	}
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	if offset > 0 {
		ds = ds.Offset(offset)
	}
	return ds.Prepared(true).ToSQL()
}

// mapListingsQuery selects active listings whose area has coordinates, newest first.
func mapListingsQuery(limit uint) (string, []interface{}, error) {
	ds := listingsFrom().
		Where(
			goqu.I("l.status").Eq(string(models.ListingStatusActive)),
			goqu.I("a.latitude").IsNotNull(),
			goqu.I("a.longitude").IsNotNull(),
		).
		Order(goqu.I("l.created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	return ds.Prepared(true).ToSQL()
}

// soldInAreaQuery selects listings of an area sold at or after since.
func soldInAreaQuery(areaID int64, since time.Time) (string, []interface{}, error) {
	return listingsFrom().
		Where(
			goqu.I("l.area_id").Eq(areaID),
			goqu.I("l.status").Eq(string(models.ListingStatusSold)),
			goqu.I("l.sold_at").Gte(since),
		).
		Order(goqu.I("l.sold_at").Asc()).
		Prepared(true).
		ToSQL()
}

func listingByIDQuery(id interface{}) (string, []interface{}, error) {
	return listingsFrom().
		Where(goqu.I("l.id").Eq(id)).
		Prepared(true).
		ToSQL()
}
