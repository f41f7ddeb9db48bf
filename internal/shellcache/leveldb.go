package shellcache

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// key layout
//   b:{bucket}           value: empty (bucket marker)
//   e:{bucket}\x00{url}  value: JSON snapshot

// LevelDB persists buckets on disk so the shell survives restarts.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the database directory at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// NewLevelDB wraps an already open database.
func NewLevelDB(db *leveldb.DB) *LevelDB {
	return &LevelDB{db: db}
}

func (s *LevelDB) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *LevelDB) Open(name string) (Bucket, error) {
	if err := s.db.Put(markerKey(name), nil, nil); err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", name, err)
	}
	return &levelBucket{db: s.db, name: name}, nil
}

func (s *LevelDB) Names() ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte("b:")), nil)
	defer iter.Release()

	var names []string
	for iter.Next() {
		names = append(names, string(iter.Key()[2:]))
	}
	return names, iter.Error()
}

func (s *LevelDB) Delete(name string) error {
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(util.BytesPrefix(entryKey(name, "")), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("list bucket %s: %w", name, err)
	}
	batch.Delete(markerKey(name))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("delete bucket %s: %w", name, err)
	}
	return nil
}

func markerKey(bucket string) []byte {
	return []byte("b:" + bucket)
}

func entryKey(bucket, url string) []byte {
	return []byte("e:" + bucket + "\x00" + url)
}

type levelBucket struct {
	db   *leveldb.DB
	name string
}

func (b *levelBucket) Name() string { return b.name }

func (b *levelBucket) Match(key string) (*Snapshot, error) {
	v, err := b.db.Get(entryKey(b.name, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := sonic.ConfigStd.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &s, nil
}

func (b *levelBucket) Put(key string, s *Snapshot) error {
	return b.PutAll(map[string]*Snapshot{key: s})
}

func (b *levelBucket) PutAll(entries map[string]*Snapshot) error {
	batch := new(leveldb.Batch)
	batch.Put(markerKey(b.name), nil)
	for key, s := range entries {
		v, err := sonic.ConfigStd.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", key, err)
		}
		batch.Put(entryKey(b.name, key), v)
	}
	return b.db.Write(batch, nil)
}

func (b *levelBucket) Keys() ([]string, error) {
	prefix := entryKey(b.name, "")
	iter := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()[len(prefix):]))
	}
	return keys, iter.Error()
}
