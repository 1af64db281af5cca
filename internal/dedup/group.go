package dedup

import (
	"sort"
	"sync"

	"mediaorganizer/internal/fingerprint"
)

// Role labels a group member in the duplicate log.
type Role string

const (
	RoleOriginal  Role = "original"
	RoleDuplicate Role = "duplicate"
)

// Group is a set of at least two paths sharing a digest. Paths[0] is canonical.
type Group struct {
	ID     int
	Digest fingerprint.Digest
	Paths  []string
}

// Canonical returns the retained original.
func (g Group) Canonical() string {
	if len(g.Paths) == 0 {
		return ""
	}
	return g.Paths[0]
}

// Duplicates returns the members eligible for relocation.
func (g Group) Duplicates() []string {
	if len(g.Paths) < 2 {
		return nil
	}
	return g.Paths[1:]
}

// RoleOf returns the role of the member at position i.
func (g Group) RoleOf(i int) Role {
	if i == 0 {
		return RoleOriginal
	}
	return RoleDuplicate
}

// Collector accumulates digests keyed by discovery index. It is safe for
// concurrent use, so hashing workers can report out of order.
type Collector struct {
	mu      sync.Mutex
	entries map[int]entry
}

type entry struct {
	path   string
	digest fingerprint.Digest
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{entries: make(map[int]entry)}
}

// Add records the digest of the path discovered at index. Re-adding an index
// replaces the earlier value.
func (c *Collector) Add(index int, path string, digest fingerprint.Digest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[index] = entry{path: path, digest: digest}
}

// Len reports how many digests were recorded.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Groups buckets the recorded paths by digest in discovery order and drops
// singletons. Group ids are 1-based, ordered by canonical discovery index.
func (c *Collector) Groups() []Group {
	c.mu.Lock()
	indexes := make([]int, 0, len(c.entries))
	for idx := range c.entries {
		indexes = append(indexes, idx)
	}
	entries := c.entries
	c.mu.Unlock()

	sort.Ints(indexes)

	buckets := make(map[fingerprint.Digest][]string)
	var order []fingerprint.Digest
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		e := entries[idx]
		if _, dup := seen[e.path]; dup {
			continue
		}
		seen[e.path] = struct{}{}
		if _, ok := buckets[e.digest]; !ok {
			order = append(order, e.digest)
		}
		buckets[e.digest] = append(buckets[e.digest], e.path)
	}

	groups := make([]Group, 0)
	for _, digest := range order {
		paths := buckets[digest]
		if len(paths) < 2 {
			continue
		}
		groups = append(groups, Group{ID: len(groups) + 1, Digest: digest, Paths: paths})
	}
	return groups
}
