package watch

// Match returns the paths of b that should trigger w: their kind is one of
// w's interests and they match at least one of w's patterns. Batch order is
// preserved. A watcher without interests or patterns never matches.
func Match(w *Watcher, b Batch) []string {
	if w.Interests.Empty() || len(w.Patterns) == 0 {
		return nil
	}

	var paths []string

	for _, c := range b {
		if !w.Interests.Has(c.Kind) {
			continue
		}

		if w.Matches(c.Path) {
			paths = append(paths, c.Path)
		}
	}

	return paths
}
