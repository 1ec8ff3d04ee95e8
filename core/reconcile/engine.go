package reconcile

import (
	"context"
	"fmt"
	"sort"

	"catalog-sync/core/catalog"
)

// ReconcileAll compares every listing of the local snapshot with the mirror
// and returns one result per distinct id, sorted by id.
func ReconcileAll(ctx context.Context, spec *Spec) ([]ReconcileResult, error) {
	cache, err := BuildCache(ctx, spec)
	if err != nil {
		return nil, err
	}
	return reconcileFromCache(cache), nil
}

// ReconcileOne compares a single listing. It uses the cached indices when
// caching is enabled.
func ReconcileOne(ctx context.Context, spec *Spec, id int64) (*ReconcileResult, error) {
	var (
		cache *ReconcileCache
		err   error
	)
	if spec.CacheTTL > 0 {
		cache, err = GetOrBuildCache(ctx, spec)
	} else {
		cache, err = BuildCache(ctx, spec)
	}
	if err != nil {
		return nil, err
	}

	result := buildResult(id, cache.LocalIndex, cache.MirrorIndex)
	return &result, nil
}

func reconcileFromCache(cache *ReconcileCache) []ReconcileResult {
	union := buildUnion(cache.LocalIndex, cache.MirrorIndex)

	results := make([]ReconcileResult, 0, len(union))
	for id := range union {
		results = append(results, buildResult(id, cache.LocalIndex, cache.MirrorIndex))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results
}

// buildUnion creates a union of the ids of both sides.
func buildUnion(local, mirror map[int64]catalog.Record) map[int64]struct{} {
	union := make(map[int64]struct{}, len(local))
	for id := range local {
		union[id] = struct{}{}
	}
	for id := range mirror {
		union[id] = struct{}{}
	}
	return union
}

// buildResult creates a ReconcileResult for a single id.
func buildResult(id int64, local, mirror map[int64]catalog.Record) ReconcileResult {
	l, localPresent := local[id]
	m, mirrorPresent := mirror[id]

	result := ReconcileResult{
		ID:            id,
		LocalPresent:  localPresent,
		MirrorPresent: mirrorPresent,
		Mismatch:      []string{},
	}

	switch {
	case localPresent:
		result.Name = l.DisplayName()
	case mirrorPresent:
		result.Name = m.DisplayName()
	}

	if localPresent && mirrorPresent {
		result.Mismatch = CompareFields(l, m)
	}
	return result
}

// CompareFields lists the listing fields that differ between the local and
// the mirrored record. CheckedAt is ignored.
func CompareFields(local, mirror catalog.Record) []string {
	out := []string{}
	add := func(field string, l, m any) {
		out = append(out, fmt.Sprintf("%s: local=%v mirror=%v", field, l, m))
	}

	if local.InStock != mirror.InStock {
		add("in_stock", local.InStock, mirror.InStock)
	}
	if local.SoldOut != mirror.SoldOut {
		add("is_sold_out", local.SoldOut, mirror.SoldOut)
	}
	if local.Direction != mirror.Direction {
		add("operation", local.Direction, mirror.Direction)
	}
	lp, lok := local.PriceAmount()
	mp, mok := mirror.PriceAmount()
	if lok != mok || lp != mp {
		add("price", priceString(lp, lok), priceString(mp, mok))
	}
	if local.DisplayName() != mirror.DisplayName() {
		add("name", local.DisplayName(), mirror.DisplayName())
	}
	if local.Slug != mirror.Slug {
		add("slug", local.Slug, mirror.Slug)
	}
	return out
}

func priceString(v float64, ok bool) string {
	if !ok {
		return "none"
	}
	return fmt.Sprintf("%g", v)
}
