// Package store holds Store implementations: an in-memory fake for tests
// and development, plus the on-disk and clustered backends in its
// subpackages.
package store

import (
	"sync"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

// MemStore is a Store backed by plain Go maps guarded by a single
// RWMutex, in the same shape the teacher's own process-local fake
// datastore uses: reads take the read lock, writes take the write lock,
// and a missing key is reported as ErrNoSuchFile rather than a zero
// value. It is meant for tests and local development, not production use.
type MemStore struct {
	mutex sync.RWMutex

	objects  map[drive.ContentHash][]byte
	chunkRef map[drive.ChunkHash]uint64
	versions map[drive.DirectoryId][]drive.VersionName
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		objects:  make(map[drive.ContentHash][]byte),
		chunkRef: make(map[drive.ChunkHash]uint64),
		versions: make(map[drive.DirectoryId][]drive.VersionName),
	}
}

func (s *MemStore) Put(c *drive.Ctx, hash drive.ContentHash, data []byte) error {
	if len(data) > drive.MaxChunkSize*64 {
		// a directory snapshot has no hard size cap of its own, but a
		// value far past any plausible snapshot size indicates a
		// caller bug rather than legitimate content.
		panic("store: attempted to store an implausibly large object")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[hash] = stored
	return nil
}

func (s *MemStore) Get(c *drive.Ctx, hash drive.ContentHash) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, exists := s.objects[hash]
	if !exists {
		return nil, drive.NewError(drive.ErrNoSuchFile, "MemStore.Get", hash.String(), nil)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemStore) Delete(c *drive.Ctx, hash drive.ContentHash) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.objects, hash)
	return nil
}

func (s *MemStore) IncrementReferences(c *drive.Ctx, hashes []drive.ChunkHash) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, h := range hashes {
		s.chunkRef[h]++
	}
	return nil
}

// ReferenceCount returns the current reference count for chunk, for use by
// tests asserting on Directory.Serialise's increment behavior.
func (s *MemStore) ReferenceCount(chunk drive.ChunkHash) uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.chunkRef[chunk]
}

func (s *MemStore) AppendVersion(c *drive.Ctx, dir drive.DirectoryId, version drive.VersionName) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	chain := s.versions[dir]
	if int(version.Index) < len(chain) {
		return drive.NewError(drive.ErrFileExists, "MemStore.AppendVersion", dir.String(), nil)
	}
	if int(version.Index) != len(chain) {
		return drive.NewError(drive.ErrInvalidParameter, "MemStore.AppendVersion", dir.String(), nil)
	}
	s.versions[dir] = append(chain, version)
	return nil
}

func (s *MemStore) GetVersions(c *drive.Ctx, dir drive.DirectoryId) ([]drive.VersionName, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	chain := s.versions[dir]
	out := make([]drive.VersionName, len(chain))
	copy(out, chain)
	return out, nil
}
