package pricing

import "propwise/models"

// Square feet per unit. Marla follows the 272.25 sq ft convention.
var sqFtPerUnit = map[models.AreaUnit]float64{
	models.AreaUnitMarla:  272.25,
	models.AreaUnitKanal:  5445.0,
	models.AreaUnitSqYard: 9.0,
	models.AreaUnitSqFt:   1.0,
}

// ToSquareFeet converts size to square feet. Unknown units pass through
// unchanged with known=false so callers can flag them.
func ToSquareFeet(size float64, unit models.AreaUnit) (sqft float64, known bool) {
	factor, ok := sqFtPerUnit[unit]
	if !ok {
		return size, false
	}
	return size * factor, true
}

// PricePerSqFt returns price divided by normalized size. ok is false when
// the listing has no usable price or size.
func PricePerSqFt(l *models.Listing) (value float64, knownUnit bool, ok bool) {
	if l.Price <= 0 || l.AreaSize <= 0 {
		return 0, true, false
	}
	sqft, known := ToSquareFeet(l.AreaSize, l.AreaUnit)
	if sqft <= 0 {
		return 0, known, false
	}
	return float64(l.Price) / sqft, known, true
}
