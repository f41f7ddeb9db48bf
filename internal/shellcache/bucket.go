package shellcache

import "strings"

// CacheName is the bucket name for one shell version, e.g. stocktool-cache-v1.
func CacheName(prefix, version string) string {
	prefix = strings.TrimSuffix(prefix, "-")
	if prefix == "" {
		return version
	}
	return prefix + "-" + version
}

// StaleBuckets returns every name in names other than current, in input
// order. Activation deletes exactly these.
func StaleBuckets(names []string, current string) []string {
	stale := make([]string, 0, len(names))
	for _, name := range names {
		if name != current {
			stale = append(stale, name)
		}
	}
	return stale
}
