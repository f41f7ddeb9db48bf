package shellcache

import (
	"sort"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
)

const (
	bucketKeyPrefix = "bucket\x00"
	entryKeyPrefix  = "entry\x00"
)

// Memory keeps buckets in a process-local go-cache; nothing expires on its own.
type Memory struct {
	mu sync.Mutex
	c  *cache.Cache
}

func NewMemory() *Memory {
	return &Memory{c: cache.New(cache.NoExpiration, 0)}
}

func (m *Memory) Open(name string) (Bucket, error) {
	m.c.SetDefault(bucketKeyPrefix+name, struct{}{})
	return &memoryBucket{m: m, name: name}, nil
}

func (m *Memory) Names() ([]string, error) {
	var names []string
	for k := range m.c.Items() {
		if name, ok := strings.CutPrefix(k, bucketKeyPrefix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := entryPrefix(name)
	for k := range m.c.Items() {
		if strings.HasPrefix(k, prefix) {
			m.c.Delete(k)
		}
	}
	m.c.Delete(bucketKeyPrefix + name)
	return nil
}

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}

func entryPrefix(bucket string) string {
	return entryKeyPrefix + bucket + "\x00"
}

type memoryBucket struct {
	m    *Memory
	name string
}

func (b *memoryBucket) Name() string { return b.name }

func (b *memoryBucket) Match(key string) (*Snapshot, error) {
	v, ok := b.m.c.Get(entryPrefix(b.name) + key)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Snapshot), nil
}

func (b *memoryBucket) Put(key string, s *Snapshot) error {
	b.m.c.SetDefault(entryPrefix(b.name)+key, s)
	return nil
}

func (b *memoryBucket) PutAll(entries map[string]*Snapshot) error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()

	for key, s := range entries {
		b.m.c.SetDefault(entryPrefix(b.name)+key, s)
	}
	return nil
}

func (b *memoryBucket) Keys() ([]string, error) {
	prefix := entryPrefix(b.name)
	var keys []string
	for k := range b.m.c.Items() {
		if key, ok := strings.CutPrefix(k, prefix); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
