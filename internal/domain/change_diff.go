package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// bookkeepingFields are maintained by the version service and never reported as changes.
var bookkeepingFields = map[string]struct{}{
	"version":           {},
	"updatedAt":         {},
	"updatedBy":         {},
	"changeDescription": {},
	"href":              {},
}

// DiffSnapshots compares two entity snapshots and describes the field level
// change between them. Columns are matched by name and reported as
// "column:<path>" entries; a column whose data type changes is reported as
// deleted and added again. Null, empty strings and empty collections count as
// absent. The returned description has no previous version set.
func DiffSnapshots(previous, next map[string]any) ChangeDescription {
	acc := &changeAccumulator{}

	keys := unionKeys(previous, next)
	for _, key := range keys {
		if _, skip := bookkeepingFields[key]; skip {
			continue
		}
		if key == "columns" {
			prevCols, prevOK := asColumns(previous[key])
			nextCols, nextOK := asColumns(next[key])
			if prevOK && nextOK {
				diffColumns("", prevCols, nextCols, acc)
				continue
			}
		}
		acc.compare(key, previous[key], next[key])
	}

	return ChangeDescription{
		fieldsAdded:   acc.added,
		fieldsUpdated: acc.updated,
		fieldsDeleted: acc.deleted,
	}
}

type changeAccumulator struct {
	added   []string
	updated []string
	deleted []string
}

func (a *changeAccumulator) compare(field string, before, after any) {
	beforeAbsent := isAbsent(before)
	afterAbsent := isAbsent(after)

	switch {
	case beforeAbsent && afterAbsent:
	case beforeAbsent:
		a.added = append(a.added, field)
	case afterAbsent:
		a.deleted = append(a.deleted, field)
	case !sameValue(before, after):
		a.updated = append(a.updated, field)
	}
}

type column struct {
	name  string
	attrs map[string]any
}

func diffColumns(prefix string, previous, next []column, acc *changeAccumulator) {
	prevByName := make(map[string]column, len(previous))
	for _, c := range previous {
		prevByName[c.name] = c
	}
	nextByName := make(map[string]column, len(next))
	for _, c := range next {
		nextByName[c.name] = c
	}

	for _, c := range previous {
		if _, ok := nextByName[c.name]; !ok {
			acc.deleted = append(acc.deleted, columnFieldPrefix+prefix+c.name)
		}
	}

	for _, c := range next {
		path := prefix + c.name
		before, ok := prevByName[c.name]
		if !ok {
			acc.added = append(acc.added, columnFieldPrefix+path)
			continue
		}

		if !sameValue(before.attrs["dataType"], c.attrs["dataType"]) ||
			!sameValue(before.attrs["arrayDataType"], c.attrs["arrayDataType"]) {
			acc.deleted = append(acc.deleted, columnFieldPrefix+path)
			acc.added = append(acc.added, columnFieldPrefix+path)
			continue
		}

		for _, key := range unionKeys(before.attrs, c.attrs) {
			switch key {
			case "name", "dataType", "arrayDataType", "fullyQualifiedName":
				continue
			case "children":
				prevChildren, prevOK := asColumns(before.attrs[key])
				nextChildren, nextOK := asColumns(c.attrs[key])
				if prevOK && nextOK {
					diffColumns(path+".", prevChildren, nextChildren, acc)
					continue
				}
			}
			acc.compare(columnFieldPrefix+path+"."+key, before.attrs[key], c.attrs[key])
		}
	}
}

// asColumns converts a decoded JSON array of named objects into columns. It
// reports false when the value has any other shape.
func asColumns(value any) ([]column, bool) {
	if value == nil {
		return []column{}, true
	}
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}

	columns := make([]column, 0, len(items))
	for _, item := range items {
		attrs, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		name, ok := attrs["name"].(string)
		if !ok || name == "" {
			return nil, false
		}
		columns = append(columns, column{name: name, attrs: attrs})
	}
	return columns, true
}

func isAbsent(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	default:
		return false
	}
}

// sameValue compares the canonical JSON encoding so that numeric types and map
// ordering do not matter.
func sameValue(a, b any) bool {
	left, errLeft := json.Marshal(a)
	right, errRight := json.Marshal(b)
	if errLeft != nil || errRight != nil {
		return false
	}
	return bytes.Equal(left, right)
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for key := range a {
		seen[key] = struct{}{}
	}
	for key := range b {
		seen[key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
