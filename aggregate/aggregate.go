// Package aggregate computes grouped sums over feature attributes and prints
// them as aligned text tables.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/wardmap/feature"
)

// ErrUnknownColumn is returned when a grouping or value column is not in
// the collection's schema.
var ErrUnknownColumn = errors.New("unknown column")

// Value types reported in the series footer.
const (
	Int64   = "int64"
	Float64 = "float64"
)

// Row is one group of a Series.
type Row struct {
	Keys  []string
	Value float64
}

// Series is a sum indexed by one or more group keys, sorted ascending.
type Series struct {
	Name       string
	IndexNames []string
	Rows       []Row
	DType      string
}

// GroupSum groups the features of c by the by columns and sums column.
// Features with a missing group key are skipped; missing values count as 0
// and make the series float64, even when the column is an integer field.
func GroupSum(c *feature.Collection, by []string, column string) (*Series, error) {
	if len(by) == 0 {
		return nil, errors.New("group sum: no grouping columns")
	}
	for _, name := range append(append([]string(nil), by...), column) {
		if _, ok := c.Field(name); !ok {
			return nil, fmt.Errorf("group %s by %s: %w %q", c.Name, strings.Join(by, ", "), ErrUnknownColumn, name)
		}
	}

	dtype := Float64
	if f, _ := c.Field(column); f.Type == feature.Integer {
		dtype = Int64
	}

	sums := make(map[string]*Row)
	for _, f := range c.Features {
		v, hasValue := f.Properties.Number(column)
		if !hasValue {
			// A blank cell makes the whole column float, as in pandas.
			dtype = Float64
		}

		keys := make([]string, len(by))
		complete := true
		for i, name := range by {
			k, ok := f.Properties.String(name)
			if !ok {
				complete = false
				break
			}
			keys[i] = k
		}
		if !complete {
			continue
		}

		id := strings.Join(keys, "\x00")
		row, ok := sums[id]
		if !ok {
			row = &Row{Keys: keys}
			sums[id] = row
		}
		if hasValue {
			row.Value += v
		}
	}

	s := &Series{
		Name:       column,
		IndexNames: append([]string(nil), by...),
		Rows:       make([]Row, 0, len(sums)),
		DType:      dtype,
	}
	for _, r := range sums {
		s.Rows = append(s.Rows, *r)
	}
	sort.Slice(s.Rows, func(i, j int) bool {
		return lessKeys(s.Rows[i].Keys, s.Rows[j].Keys)
	})
	return s, nil
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Len returns the number of groups.
func (s *Series) Len() int {
	return len(s.Rows)
}

// Total returns the sum over all groups.
func (s *Series) Total() float64 {
	var t float64
	for _, r := range s.Rows {
		t += r.Value
	}
	return t
}

// Lookup returns the value of the group with exactly the given keys.
func (s *Series) Lookup(keys ...string) (float64, bool) {
	if len(keys) != len(s.IndexNames) {
		return 0, false
	}
	i := sort.Search(len(s.Rows), func(i int) bool {
		return !lessKeys(s.Rows[i].Keys, keys)
	})
	if i < len(s.Rows) && !lessKeys(keys, s.Rows[i].Keys) {
		return s.Rows[i].Value, true
	}
	return 0, false
}

// Prefix returns the groups whose leading keys equal keys, keeping order.
func (s *Series) Prefix(keys ...string) []Row {
	var out []Row
	for _, r := range s.Rows {
		if len(r.Keys) < len(keys) {
			continue
		}
		match := true
		for i, k := range keys {
			if r.Keys[i] != k {
				match = false
				break
			}
		}
		if match {
			out = append(out, r)
		}
	}
	return out
}
