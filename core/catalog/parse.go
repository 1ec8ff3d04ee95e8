package catalog

import (
	"fmt"
	"time"

	"catalog-sync/core/utils"

	"github.com/tidwall/gjson"
)

// ParseRecord reads a listing from a loosely typed JSON object. Numbers may
// be quoted, flags may be 0/1 or strings, and the price may be a scalar or an
// {amount} object. A zero or unparseable price is treated as absent. A
// missing operation leaves Direction empty, which IsActive reads as sell.
func ParseRecord(data gjson.Result) Record {
	r := Record{
		ID:         utils.ToInt64(data.Get("id").Value()),
		Title:      data.Get("title").String(),
		Name:       data.Get("name").String(),
		Slug:       data.Get("slug").String(),
		InStock:    utils.ToInt(data.Get("in_stock").Value()),
		SoldOut:    utils.ToBool(data.Get("is_sold_out").Value()),
		UserName:   data.Get("user_name").String(),
		UserAvatar: data.Get("user_avatar").String(),
	}

	if op := data.Get("operation").String(); op != "" {
		r.Direction = ParseDirection(op)
	}

	price := data.Get("price")
	if price.IsObject() {
		price = price.Get("amount")
	}
	if price.Exists() && price.Type != gjson.Null {
		if v, ok := utils.ToFloat(price.Value()); ok && v != 0 {
			r.Price = &v
		}
	}

	if at := data.Get("checked_at"); at.Type == gjson.String {
		if t, err := time.Parse(time.RFC3339Nano, at.String()); err == nil {
			r.CheckedAt = t
		}
	}
	return r
}

// UnmarshalJSON accepts both the canonical snapshot shape and the loose
// shapes written by older tools.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid listing document")
	}
	v := gjson.ParseBytes(data)
	if v.Type == gjson.Null {
		return nil
	}
	if !v.IsObject() {
		return fmt.Errorf("listing is not an object: %s", v.Type)
	}
	*r = ParseRecord(v)
	return nil
}
