// Package boltstore is a single-file, local-disk Store backed by BoltDB.
package boltstore

import (
	"encoding/binary"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/pkg/errors"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

var (
	objectsBucket  = []byte("objects")
	versionsBucket = []byte("versions")
	chunksBucket   = []byte("chunk_refs")
)

// Store is a drive.Store backed by a single BoltDB file: one bucket holding
// serialized directory snapshots keyed by content hash, one bucket holding
// each directory's version chain keyed by directory id, and one bucket
// holding chunk reference counts.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a BoltDB file at path and ensures its
// three buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt store at %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{objectsBucket, versionsBucket, chunksBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialise bolt store buckets")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying BoltDB file handle.
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

func (s *Store) Put(c *drive.Ctx, hash drive.ContentHash, data []byte) error {
	return withRetry("boltstore.Put", func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(objectsBucket).Put(hash[:], data)
		})
	})
}

func (s *Store) Get(c *drive.Ctx, hash drive.ContentHash) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get(hash[:])
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, drive.WrapStoreErr("boltstore.Get", err)
	}
	if out == nil {
		return nil, drive.NewError(drive.ErrNoSuchFile, "boltstore.Get", hash.String(), nil)
	}
	return out, nil
}

func (s *Store) Delete(c *drive.Ctx, hash drive.ContentHash) error {
	return withRetry("boltstore.Delete", func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(objectsBucket).Delete(hash[:])
		})
	})
}

func (s *Store) IncrementReferences(c *drive.Ctx, hashes []drive.ChunkHash) error {
	if len(hashes) == 0 {
		return nil
	}
	return withRetry("boltstore.IncrementReferences", func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket(chunksBucket)
			for _, h := range hashes {
				count := uint64(0)
				if v := bucket.Get(h[:]); v != nil {
					count = binary.BigEndian.Uint64(v)
				}
				count++
				var buf [8]byte
				binary.BigEndian.PutUint64(buf[:], count)
				if err := bucket.Put(h[:], buf[:]); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func versionKey(dir drive.DirectoryId, index uint64) []byte {
	key := make([]byte, len(dir)+8)
	copy(key, dir[:])
	binary.BigEndian.PutUint64(key[len(dir):], index)
	return key
}

func (s *Store) AppendVersion(c *drive.Ctx, dir drive.DirectoryId, version drive.VersionName) error {
	var alreadyExists bool
	err := withRetry("boltstore.AppendVersion", func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket(versionsBucket)
			key := versionKey(dir, version.Index)
			if bucket.Get(key) != nil {
				alreadyExists = true
				return nil
			}
			return bucket.Put(key, version.ContentHash[:])
		})
	})
	if err != nil {
		return err
	}
	if alreadyExists {
		return drive.NewError(drive.ErrFileExists, "boltstore.AppendVersion", dir.String(), nil)
	}
	return nil
}

func (s *Store) GetVersions(c *drive.Ctx, dir drive.DirectoryId) ([]drive.VersionName, error) {
	var versions []drive.VersionName

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(versionsBucket)
		cursor := bucket.Cursor()
		prefix := dir[:]
		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			index := binary.BigEndian.Uint64(k[len(prefix):])
			var hash drive.ContentHash
			copy(hash[:], v)
			versions = append(versions, drive.VersionName{Index: index, ContentHash: hash})
		}
		return nil
	})
	if err != nil {
		return nil, drive.WrapStoreErr("boltstore.GetVersions", err)
	}
	return versions, nil
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
