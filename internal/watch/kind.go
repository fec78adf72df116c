package watch

import (
	"fmt"
	"strings"
)

// ChangeKind tags a path in a batch with the kind of change reported for it.
type ChangeKind uint8

// Supported change kinds.
const (
	Modified ChangeKind = 1 << iota
	Added
	Removed
)

// allKinds lists every kind in batch composition order.
var allKinds = []ChangeKind{Modified, Added, Removed}

func (k ChangeKind) String() string {
	switch k {
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", uint8(k))
	}
}

// ParseChangeKind converts "modified", "added" or "removed" into a ChangeKind.
func ParseChangeKind(s string) (ChangeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "modified":
		return Modified, nil
	case "added":
		return Added, nil
	case "removed":
		return Removed, nil
	default:
		return 0, fmt.Errorf("unknown change kind %q: must be one of modified, added, removed", s)
	}
}

// KindSet is the set of change kinds a watcher reacts to.
type KindSet uint8

// NewKindSet returns a set holding kinds.
func NewKindSet(kinds ...ChangeKind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= KindSet(k)
	}

	return s
}

// ParseKindSet parses a list of kind names. An empty list yields an empty set.
func ParseKindSet(names []string) (KindSet, error) {
	var s KindSet

	for _, name := range names {
		k, err := ParseChangeKind(name)
		if err != nil {
			return 0, err
		}

		s |= KindSet(k)
	}

	return s, nil
}

// Has reports whether k is in the set.
func (s KindSet) Has(k ChangeKind) bool {
	return s&KindSet(k) != 0
}

// Empty reports whether the set holds no kinds.
func (s KindSet) Empty() bool {
	return s == 0
}

// Kinds returns the members in modified, added, removed order.
func (s KindSet) Kinds() []ChangeKind {
	kinds := make([]ChangeKind, 0, len(allKinds))
	for _, k := range allKinds {
		if s.Has(k) {
			kinds = append(kinds, k)
		}
	}

	return kinds
}

// Names returns the lowercase member names.
func (s KindSet) Names() []string {
	kinds := s.Kinds()

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}

	return names
}

func (s KindSet) String() string {
	return "[" + strings.Join(s.Names(), " ") + "]"
}
