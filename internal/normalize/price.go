package normalize

import "brickdesk/server/internal/models"

// DisplayPriceWan picks the price to show for a listing, in wan (units of
// 10,000 yuan). A sold listing falls back to its original asking price when
// the deal price is missing; a for-sale listing never shows a stale deal
// price from a prior cycle.
func DisplayPriceWan(p *models.Property) *float64 {
	if p == nil {
		return nil
	}
	switch NormalizeStatus(p.Status) {
	case StatusForSale:
		return p.ListedPriceWan
	case StatusSold:
		if p.SoldPriceWan != nil {
			return p.SoldPriceWan
		}
		return p.ListedPriceWan
	default:
		if p.ListedPriceWan != nil {
			return p.ListedPriceWan
		}
		return p.SoldPriceWan
	}
}

// UnitPriceYuanPerSqm returns the per-square-meter price in yuan. An explicit
// non-zero unit price from the source is authoritative; otherwise it is
// computed from the display price and build area. Returns nil when the
// display price is unavailable or the area is absent or zero.
func UnitPriceYuanPerSqm(p *models.Property) *float64 {
	if p == nil {
		return nil
	}
	if p.UnitPriceYuan != nil && *p.UnitPriceYuan != 0 {
		return p.UnitPriceYuan
	}
	display := DisplayPriceWan(p)
	if display == nil {
		return nil
	}
	if p.BuildArea == nil || *p.BuildArea == 0 {
		return nil
	}
	unit := *display * 10000 / *p.BuildArea
	return &unit
}
