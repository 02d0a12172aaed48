package sync

import "github.com/goliatone/go-pagesync/pkg/interfaces"

// orderEntries returns entries in manifest order, except that a parent listed
// after one of its children is moved ahead of it. Parents outside the
// manifest are ignored and a parent cycle is broken at its earliest entry.
func orderEntries(entries []interfaces.ManifestEntry) []interfaces.ManifestEntry {
	index := make(map[string]int, len(entries))
	for i, entry := range entries {
		if _, seen := index[entry.Slug]; !seen {
			index[entry.Slug] = i
		}
	}

	parent := make([]int, len(entries))
	for i, entry := range entries {
		parent[i] = -1
		if p, ok := index[entry.Parent]; ok && entry.Parent != "" && p != i {
			parent[i] = p
		}
	}
	for i := range entries {
		if inCycle(parent, i) {
			parent[i] = -1
		}
	}

	out := make([]interfaces.ManifestEntry, 0, len(entries))
	emitted := make([]bool, len(entries))
	var visit func(int)
	visit = func(i int) {
		if emitted[i] {
			return
		}
		if p := parent[i]; p >= 0 {
			visit(p)
		}
		emitted[i] = true
		out = append(out, entries[i])
	}
	for i := range entries {
		visit(i)
	}
	return out
}

func inCycle(parent []int, start int) bool {
	current := parent[start]
	for steps := 0; current >= 0 && steps < len(parent); steps++ {
		if current == start {
			return true
		}
		current = parent[current]
	}
	return false
}
