// Package domain holds the realm tree rules shared by storage, the mutation
// service and client-facing validation.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// DefaultChildIndex sorts children without an explicit index last.
const DefaultChildIndex = math.MaxInt32

// ChildOrder decides how a realm's children are listed.
type ChildOrder string

const (
	ChildOrderByIndex        ChildOrder = "by_index"
	ChildOrderAlphabeticAsc  ChildOrder = "alphabetic:asc"
	ChildOrderAlphabeticDesc ChildOrder = "alphabetic:desc"
)

// ParseChildOrder validates a child order, defaulting blank input to by_index.
func ParseChildOrder(value string) (ChildOrder, error) {
	switch order := ChildOrder(strings.TrimSpace(value)); order {
	case "":
		return ChildOrderByIndex, nil
	case ChildOrderByIndex, ChildOrderAlphabeticAsc, ChildOrderAlphabeticDesc:
		return order, nil
	default:
		return "", fmt.Errorf("unknown child order %q", value)
	}
}

// UsesIndex reports whether child indices matter for this order.
func (o ChildOrder) UsesIndex() bool {
	return o == ChildOrderByIndex
}

// ItemKind names the entity kind of a reindex work item.
type ItemKind string

const (
	ItemKindRealm ItemKind = "realm"
	ItemKindEvent ItemKind = "event"
)

// ParseItemKind validates a work item kind.
func ParseItemKind(value string) (ItemKind, error) {
	switch kind := ItemKind(strings.TrimSpace(value)); kind {
	case ItemKindRealm, ItemKindEvent:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown item kind %q", value)
	}
}

// JoinPath derives a child's full path. The root's full path is "".
func JoinPath(parentPath string, segment string) string {
	return parentPath + "/" + segment
}

// DescendantRange returns the half-open [lo, hi) range of full paths strictly
// below path. '0' is the byte after '/', so the range is index friendly and
// immune to LIKE wildcards inside segments.
func DescendantRange(path string) (lo string, hi string) {
	return path + "/", path + "0"
}

// IsStrictDescendant reports whether candidate lies strictly below ancestor.
func IsStrictDescendant(ancestor string, candidate string) bool {
	return strings.HasPrefix(candidate, ancestor+"/")
}

// AncestorPaths lists the full paths of every ancestor of path, root first.
func AncestorPaths(path string) []string {
	out := []string{""}
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

// NormalizePath accepts user-typed paths ("/", "lectures/", "/a/b") and
// returns the canonical full path form.
func NormalizePath(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" {
		return ""
	}
	return "/" + value
}
