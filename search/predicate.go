package search

import (
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"propwise/models"
)

// Column identifiers used by the listing queries. Listings are aliased "l", areas "a".
var (
	colCreatedAt = goqu.I("l.created_at")
	colTitle     = goqu.I("l.title")
	colType      = goqu.I("l.property_type")
	colPurpose   = goqu.I("l.purpose")
	colPrice     = goqu.I("l.price")
	colBedrooms  = goqu.I("l.bedrooms")
	colCityID    = goqu.I("a.city_id")
)

// Condition is one clause of a predicate. Expression renders it for the
// database, Match evaluates it against a listing already in memory.
type Condition interface {
	Expression() exp.Expression
	Match(l *models.Listing) bool
}

// Predicate is a conjunction of conditions.
type Predicate struct {
	conds []Condition
}

// Build translates stored criteria into a predicate. The created-after
// anchor is always present; every other clause only when its field is set.
func Build(s *models.SavedSearch) Predicate {
	p := Predicate{conds: []Condition{createdAfter{s.LastChecked}}}

	if s.CityID != nil {
		p.conds = append(p.conds, cityIs{*s.CityID})
	}
	if s.Keyword != nil && strings.TrimSpace(*s.Keyword) != "" {
		p.conds = append(p.conds, titleContains{strings.TrimSpace(*s.Keyword)})
	}
	if s.PropertyType != nil {
		p.conds = append(p.conds, typeIs{*s.PropertyType})
	}
	if s.Purpose != nil {
		p.conds = append(p.conds, purposeIs{*s.Purpose})
	}
	if s.MinPrice != nil {
		p.conds = append(p.conds, priceAtLeast{*s.MinPrice})
	}
	if s.MaxPrice != nil {
		p.conds = append(p.conds, priceAtMost{*s.MaxPrice})
	}
	if s.MinBedrooms != nil {
		p.conds = append(p.conds, bedroomsAtLeast{*s.MinBedrooms})
	}

	return p
}

// Until bounds the predicate to listings created at or before t. The scanner
// uses it so a listing inserted mid-pass is picked up by the next pass only.
func (p Predicate) Until(t time.Time) Predicate {
	conds := make([]Condition, len(p.conds), len(p.conds)+1)
	copy(conds, p.conds)
	return Predicate{conds: append(conds, createdAtMost{t})}
}

func (p Predicate) Len() int {
	return len(p.conds)
}

func (p Predicate) Expression() exp.ExpressionList {
	exprs := make([]exp.Expression, 0, len(p.conds))
	for _, c := range p.conds {
		exprs = append(exprs, c.Expression())
	}
	return goqu.And(exprs...)
}

func (p Predicate) Matches(l *models.Listing) bool {
	for _, c := range p.conds {
		if !c.Match(l) {
			return false
		}
	}
	return true
}

type createdAfter struct{ t time.Time }

func (c createdAfter) Expression() exp.Expression   { return colCreatedAt.Gt(c.t) }
func (c createdAfter) Match(l *models.Listing) bool { return l.CreatedAt.After(c.t) }

type createdAtMost struct{ t time.Time }

func (c createdAtMost) Expression() exp.Expression   { return colCreatedAt.Lte(c.t) }
func (c createdAtMost) Match(l *models.Listing) bool { return !l.CreatedAt.After(c.t) }

type cityIs struct{ id int64 }

func (c cityIs) Expression() exp.Expression { return colCityID.Eq(c.id) }
func (c cityIs) Match(l *models.Listing) bool {
	return l.CityID != nil && *l.CityID == c.id
}

type titleContains struct{ keyword string }

func (c titleContains) Expression() exp.Expression {
	return colTitle.ILike("%" + escapeLike(c.keyword) + "%")
}

func (c titleContains) Match(l *models.Listing) bool {
	return strings.Contains(strings.ToLower(l.Title), strings.ToLower(c.keyword))
}

type typeIs struct{ t models.PropertyType }

func (c typeIs) Expression() exp.Expression   { return colType.Eq(string(c.t)) }
func (c typeIs) Match(l *models.Listing) bool { return l.PropertyType == c.t }

type purposeIs struct{ p models.PropertyPurpose }

func (c purposeIs) Expression() exp.Expression   { return colPurpose.Eq(string(c.p)) }
func (c purposeIs) Match(l *models.Listing) bool { return l.Purpose == c.p }

type priceAtLeast struct{ v int64 }

func (c priceAtLeast) Expression() exp.Expression   { return colPrice.Gte(c.v) }
func (c priceAtLeast) Match(l *models.Listing) bool { return l.Price >= c.v }

type priceAtMost struct{ v int64 }

func (c priceAtMost) Expression() exp.Expression   { return colPrice.Lte(c.v) }
func (c priceAtMost) Match(l *models.Listing) bool { return l.Price <= c.v }

// Listings with no bedroom count never satisfy a bedroom minimum (NULL >= n is not true).
type bedroomsAtLeast struct{ n int }

func (c bedroomsAtLeast) Expression() exp.Expression { return colBedrooms.Gte(c.n) }
func (c bedroomsAtLeast) Match(l *models.Listing) bool {
	return l.Bedrooms != nil && *l.Bedrooms >= c.n
}

type bedroomsAtMost struct{ n int }

func (c bedroomsAtMost) Expression() exp.Expression { return colBedrooms.Lte(c.n) }
func (c bedroomsAtMost) Match(l *models.Listing) bool {
	return l.Bedrooms != nil && *l.Bedrooms <= c.n
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
