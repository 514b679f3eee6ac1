package store

// touch moves id to the front of index, prepending it when new, and trims
// the result to limit. It returns the new index and the ids that fell off.
func touch(index []string, id string, limit int) (next, evicted []string) {
	next = make([]string, 0, len(index)+1)
	next = append(next, id)
	for _, v := range index {
		if v != id {
			next = append(next, v)
		}
	}
	if limit > 0 && len(next) > limit {
		evicted = append(evicted, next[limit:]...)
		next = next[:limit]
	}
	return next, evicted
}

func remove(index []string, id string) ([]string, bool) {
	out := make([]string, 0, len(index))
	found := false
	for _, v := range index {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	return out, found
}
