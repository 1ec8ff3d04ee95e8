package catalog

import (
	"strings"
	"time"
)

// Direction is the side of a marketplace listing.
type Direction string

const (
	// DirectionSell is an offer of available inventory.
	DirectionSell Direction = "sell"
	// DirectionBuy is an open buy order.
	DirectionBuy Direction = "buy"
)

// ParseDirection normalises a remote operation value. Unknown values are
// treated as sell listings.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(DirectionBuy)) {
		return DirectionBuy
	}
	return DirectionSell
}

// Record is one marketplace listing. ID is the unique key.
type Record struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
	Name  string `json:"name,omitempty"`
	Slug  string `json:"slug,omitempty"`

	// Price is the scalar amount; structured remote prices are reduced to their amount.
	Price *float64 `json:"price,omitempty"`

	InStock   int       `json:"in_stock"`
	SoldOut   bool      `json:"is_sold_out"`
	Direction Direction `json:"operation"`

	UserName   string `json:"user_name,omitempty"`
	UserAvatar string `json:"user_avatar,omitempty"`

	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// IsActive reports whether the listing is eligible for the catalog.
// Buy orders are always active; sell listings need stock and must not be sold out.
func (r Record) IsActive() bool {
	if r.Direction == DirectionBuy {
		return true
	}
	return r.InStock >= 1 && !r.SoldOut
}

// DisplayName returns the first non-empty of title, name and slug.
func (r Record) DisplayName() string {
	switch {
	case r.Title != "":
		return r.Title
	case r.Name != "":
		return r.Name
	default:
		return r.Slug
	}
}

// URL derives the listing page from the slug. It is empty without a slug.
func (r Record) URL(base string) string {
	if r.Slug == "" || base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + r.Slug
}

// PriceAmount returns the price and whether one is set.
func (r Record) PriceAmount() (float64, bool) {
	if r.Price == nil {
		return 0, false
	}
	return *r.Price, true
}
