package docstore

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// normalize turns arbitrary Go values into their JSON shapes so stored data
// never aliases caller memory.
func normalize(data map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// merge overlays src on dst. Nested maps are merged, everything else replaced.
func merge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, v := range src {
		sv, sok := v.(map[string]interface{})
		dv, dok := dst[k].(map[string]interface{})
		if sok && dok {
			dst[k] = merge(dv, sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

func lookup(data map[string]interface{}, field string) (interface{}, bool) {
	var cur interface{} = data
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// compareValues orders the decoded JSON values a field can hold. Strings that
// parse as RFC 3339 timestamps compare as times.
func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			at, aerr := time.Parse(time.RFC3339Nano, av)
			bt, berr := time.Parse(time.RFC3339Nano, bv)
			if aerr == nil && berr == nil {
				return at.Compare(bt)
			}
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return 0
}

// order filters and sorts snapshots the way Query describes.
func order(snaps []Snapshot, q Query) []Snapshot {
	if q.OrderBy == "" {
		sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
		return snaps
	}
	out := snaps[:0]
	for _, s := range snaps {
		if _, ok := lookup(s.Data, q.OrderBy); ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := lookup(out[i].Data, q.OrderBy)
		b, _ := lookup(out[j].Data, q.OrderBy)
		c := compareValues(a, b)
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}
