package watch

// Change is a single path tagged with the kind of change it saw.
type Change struct {
	Path string
	Kind ChangeKind
}

// Batch is one delivery of changes from the notification source, with
// paths relative to the project root. A path appears at most once.
type Batch []Change

// NewBatch composes a batch from the three per-kind path lists. The
// resulting order is modified, then added, then removed, each list keeping
// its own order.
func NewBatch(modified, added, removed []string) Batch {
	b := make(Batch, 0, len(modified)+len(added)+len(removed))

	for _, group := range []struct {
		kind  ChangeKind
		paths []string
	}{
		{Modified, modified},
		{Added, added},
		{Removed, removed},
	} {
		for _, p := range group.paths {
			b = append(b, Change{Path: p, Kind: group.kind})
		}
	}

	return b
}

// Paths returns the paths of the given kind in batch order.
func (b Batch) Paths(kind ChangeKind) []string {
	var paths []string

	for _, c := range b {
		if c.Kind == kind {
			paths = append(paths, c.Path)
		}
	}

	return paths
}

// RawBatch is what the notification source delivers: the three path
// collections of one event, as reported (usually absolute).
type RawBatch struct {
	Modified []string
	Added    []string
	Removed  []string
}

// Empty reports whether the batch carries no paths at all.
func (r RawBatch) Empty() bool {
	return len(r.Modified) == 0 && len(r.Added) == 0 && len(r.Removed) == 0
}

// Len returns the total number of paths in the batch.
func (r RawBatch) Len() int {
	return len(r.Modified) + len(r.Added) + len(r.Removed)
}
