// Package badgerstore is an alternate local-disk Store backed by Badger's
// LSM tree, offered behind the identical drive.Store interface as
// boltstore so the handler is provably backend-agnostic.
package badgerstore

import (
	"encoding/binary"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

var (
	objectPrefix  = []byte("o:")
	versionPrefix = []byte("v:")
	chunkPrefix   = []byte("c:")
)

// Store is a drive.Store backed by a single Badger database, namespaced by
// key prefix rather than separate buckets since Badger has no bucket
// concept.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a Badger database directory at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger store at %s", path)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

func withRetry(op string, fn func() error) error {
	var lastErr error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return drive.WrapStoreErr(op, lastErr)
}

func objectKey(hash drive.ContentHash) []byte {
	key := make([]byte, len(objectPrefix)+len(hash))
	copy(key, objectPrefix)
	copy(key[len(objectPrefix):], hash[:])
	return key
}

func chunkKey(h drive.ChunkHash) []byte {
	key := make([]byte, len(chunkPrefix)+len(h))
	copy(key, chunkPrefix)
	copy(key[len(chunkPrefix):], h[:])
	return key
}

func versionKey(dir drive.DirectoryId, index uint64) []byte {
	key := make([]byte, len(versionPrefix)+len(dir)+8)
	copy(key, versionPrefix)
	copy(key[len(versionPrefix):], dir[:])
	binary.BigEndian.PutUint64(key[len(versionPrefix)+len(dir):], index)
	return key
}

func (s *Store) Put(c *drive.Ctx, hash drive.ContentHash, data []byte) error {
	return withRetry("badgerstore.Put", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(objectKey(hash), data)
		})
	})
}

func (s *Store) Get(c *drive.Ctx, hash drive.ContentHash) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, drive.WrapStoreErr("badgerstore.Get", err)
	}
	if out == nil {
		return nil, drive.NewError(drive.ErrNoSuchFile, "badgerstore.Get", hash.String(), nil)
	}
	return out, nil
}

func (s *Store) Delete(c *drive.Ctx, hash drive.ContentHash) error {
	return withRetry("badgerstore.Delete", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(objectKey(hash))
		})
	})
}

func (s *Store) IncrementReferences(c *drive.Ctx, hashes []drive.ChunkHash) error {
	if len(hashes) == 0 {
		return nil
	}
	return withRetry("badgerstore.IncrementReferences", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			for _, h := range hashes {
				key := chunkKey(h)
				count := uint64(0)
				item, err := txn.Get(key)
				if err == nil {
					if err := item.Value(func(val []byte) error {
						count = binary.BigEndian.Uint64(val)
						return nil
					}); err != nil {
						return err
					}
				} else if err != badger.ErrKeyNotFound {
					return err
				}
				count++
				var buf [8]byte
				binary.BigEndian.PutUint64(buf[:], count)
				if err := txn.Set(key, buf[:]); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (s *Store) AppendVersion(c *drive.Ctx, dir drive.DirectoryId, version drive.VersionName) error {
	var alreadyExists bool
	err := withRetry("badgerstore.AppendVersion", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			key := versionKey(dir, version.Index)
			if _, err := txn.Get(key); err == nil {
				alreadyExists = true
				return nil
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Set(key, version.ContentHash[:])
		})
	})
	if err != nil {
		return err
	}
	if alreadyExists {
		return drive.NewError(drive.ErrFileExists, "badgerstore.AppendVersion", dir.String(), nil)
	}
	return nil
}

func (s *Store) GetVersions(c *drive.Ctx, dir drive.DirectoryId) ([]drive.VersionName, error) {
	var versions []drive.VersionName

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := make([]byte, len(versionPrefix)+len(dir))
		copy(prefix, versionPrefix)
		copy(prefix[len(versionPrefix):], dir[:])

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			index := binary.BigEndian.Uint64(key[len(prefix):])
			var hash drive.ContentHash
			if err := item.Value(func(val []byte) error {
				copy(hash[:], val)
				return nil
			}); err != nil {
				return err
			}
			versions = append(versions, drive.VersionName{Index: index, ContentHash: hash})
		}
		return nil
	})
	if err != nil {
		return nil, drive.WrapStoreErr("badgerstore.GetVersions", err)
	}
	return versions, nil
}
