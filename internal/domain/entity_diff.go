package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	diffContextLines = 3
	// maxDiffLines caps the canonical text of one snapshot.
	maxDiffLines = 20000
)

// ErrDiffTooLarge is returned when a snapshot flattens to more lines than a diff accepts.
var ErrDiffTooLarge = errors.New("snapshot too large to diff")

// EntitySnapshot is one stored version of an entity, reduced to what a text diff needs.
type EntitySnapshot struct {
	EntityType string
	Version    EntityVersion
	Properties map[string]any
}

func NewEntitySnapshotFromRecord(record VersionRecord) EntitySnapshot {
	properties := make(map[string]any, len(record.Snapshot))
	for key, value := range record.Snapshot {
		properties[key] = value
	}
	return EntitySnapshot{
		EntityType: record.EntityType,
		Version:    record.Version,
		Properties: properties,
	}
}

// CanonicalText renders the snapshot as sorted "path: value" lines below a short
// header. Nested objects use dotted paths and arrays use [i] suffixes.
func (s EntitySnapshot) CanonicalText() ([]string, error) {
	lines := []string{
		"EntityType: " + s.EntityType,
		"Version: " + s.Version.String(),
		"Properties:",
	}

	properties := map[string]string{}
	for key, value := range s.Properties {
		if err := collectProperty(key, value, properties); err != nil {
			return nil, err
		}
	}
	if len(properties) == 0 {
		return append(lines, "  (empty)"), nil
	}

	paths := make([]string, 0, len(properties))
	for path := range properties {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		lines = append(lines, "  "+path+": "+properties[path])
	}
	return lines, nil
}

// DiffEntitySnapshots renders a unified diff with real hunk ranges and three lines
// of context. A nil snapshot diffs as empty. Identical snapshots yield only the
// two label lines.
func DiffEntitySnapshots(baseLabel string, base *EntitySnapshot, targetLabel string, target *EntitySnapshot) (string, error) {
	baseLines, err := diffInput(base)
	if err != nil {
		return "", err
	}
	targetLines, err := diffInput(target)
	if err != nil {
		return "", err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        baseLines,
		B:        targetLines,
		FromFile: baseLabel,
		ToFile:   targetLabel,
		Context:  diffContextLines,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render diff: %w", err)
	}
	if diff == "" {
		return fmt.Sprintf("--- %s\n+++ %s\n", baseLabel, targetLabel), nil
	}
	return diff, nil
}

// diffInput returns newline terminated lines, the form difflib expects.
func diffInput(snapshot *EntitySnapshot) ([]string, error) {
	if snapshot == nil {
		return nil, nil
	}

	lines, err := snapshot.CanonicalText()
	if err != nil {
		return nil, err
	}
	if len(lines) > maxDiffLines {
		return nil, fmt.Errorf("%w: version %s has %d lines, limit is %d", ErrDiffTooLarge, snapshot.Version, len(lines), maxDiffLines)
	}

	for i := range lines {
		lines[i] += "\n"
	}
	return lines, nil
}

func collectProperty(path string, value any, acc map[string]string) error {
	if len(acc) > maxDiffLines {
		return fmt.Errorf("%w: more than %d properties", ErrDiffTooLarge, maxDiffLines)
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			acc[path] = "{}"
			return nil
		}
		for key, child := range typed {
			if err := collectProperty(path+"."+key, child, acc); err != nil {
				return err
			}
		}
	case []any:
		if len(typed) == 0 {
			acc[path] = "[]"
			return nil
		}
		for i, child := range typed {
			if err := collectProperty(path+"["+strconv.Itoa(i)+"]", child, acc); err != nil {
				return err
			}
		}
	case nil:
		acc[path] = "null"
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			acc[path] = fmt.Sprint(typed)
			return nil
		}
		acc[path] = string(encoded)
	}
	return nil
}

