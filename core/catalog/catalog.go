package catalog

import "sort"

// Catalog is an immutable snapshot of active listings keyed by ID.
// Mutating helpers return a new Catalog and leave the receiver untouched, so a
// snapshot handed to readers never changes underneath them.
type Catalog struct {
	records []Record
	index   map[int64]int
}

// New builds a Catalog from records. Later records win on duplicate IDs.
func New(records []Record) *Catalog {
	return build(Dedupe(records))
}

// Empty returns a catalog without records.
func Empty() *Catalog {
	return build(nil)
}

func build(unique []Record) *Catalog {
	sort.Slice(unique, func(i, j int) bool { return unique[i].ID < unique[j].ID })
	index := make(map[int64]int, len(unique))
	for i, r := range unique {
		index[r.ID] = i
	}
	return &Catalog{records: unique, index: index}
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.records)
}

// Get returns the record with the given ID.
func (c *Catalog) Get(id int64) (Record, bool) {
	i, ok := c.index[id]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// Records returns a copy of all records ordered by ID.
func (c *Catalog) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Cursor returns the highest catalogued ID, or 0 for an empty catalog.
func (c *Catalog) Cursor() int64 {
	if len(c.records) == 0 {
		return 0
	}
	return c.records[len(c.records)-1].ID
}

// Filter returns the records matching keep, ordered by ID.
func (c *Catalog) Filter(keep func(Record) bool) []Record {
	var out []Record
	for _, r := range c.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// With returns a copy of the catalog where r replaces any record with the same ID.
func (c *Catalog) With(r Record) *Catalog {
	next := make([]Record, 0, len(c.records)+1)
	for _, existing := range c.records {
		if existing.ID != r.ID {
			next = append(next, existing)
		}
	}
	return build(append(next, r))
}

// Without returns a copy of the catalog without the given ID.
func (c *Catalog) Without(id int64) *Catalog {
	next := make([]Record, 0, len(c.records))
	for _, existing := range c.records {
		if existing.ID != id {
			next = append(next, existing)
		}
	}
	return build(next)
}

// Dedupe keeps one record per ID; for duplicates the later record wins.
// The result is in no particular order.
func Dedupe(records []Record) []Record {
	latest := make(map[int64]Record, len(records))
	for _, r := range records {
		latest[r.ID] = r
	}
	out := make([]Record, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	return out
}

// Active returns the records that satisfy the active predicate.
func Active(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}
