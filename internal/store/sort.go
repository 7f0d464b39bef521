package store

import "sort"

// sortStable is a thin wrapper so callers can pass a typed less function
// without repeating sort.Slice boilerplate at each call site.
func sortStable[T any](s []T, less func(a, b T) bool) {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
}
