package metrics

import (
	"time"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

// InstrumentedStore wraps a drive.Store, recording a latency sample into a
// Registry around every call. It implements drive.Store itself, so it can
// be dropped in anywhere a backend is constructed.
type InstrumentedStore struct {
	inner    drive.Store
	registry *Registry
}

// Wrap returns inner instrumented against registry.
func Wrap(inner drive.Store, registry *Registry) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, registry: registry}
}

func (s *InstrumentedStore) record(name string, start time.Time) {
	s.registry.For(name).Record(time.Since(start))
}

func (s *InstrumentedStore) Put(c *drive.Ctx, hash drive.ContentHash, data []byte) error {
	start := time.Now()
	defer s.record("Put", start)
	return s.inner.Put(c, hash, data)
}

func (s *InstrumentedStore) Get(c *drive.Ctx, hash drive.ContentHash) ([]byte, error) {
	start := time.Now()
	defer s.record("Get", start)
	return s.inner.Get(c, hash)
}

func (s *InstrumentedStore) Delete(c *drive.Ctx, hash drive.ContentHash) error {
	start := time.Now()
	defer s.record("Delete", start)
	return s.inner.Delete(c, hash)
}

func (s *InstrumentedStore) IncrementReferences(c *drive.Ctx, hashes []drive.ChunkHash) error {
	start := time.Now()
	defer s.record("IncrementReferences", start)
	return s.inner.IncrementReferences(c, hashes)
}

func (s *InstrumentedStore) AppendVersion(c *drive.Ctx, dir drive.DirectoryId, version drive.VersionName) error {
	start := time.Now()
	defer s.record("AppendVersion", start)
	return s.inner.AppendVersion(c, dir, version)
}

func (s *InstrumentedStore) GetVersions(c *drive.Ctx, dir drive.DirectoryId) ([]drive.VersionName, error) {
	start := time.Now()
	defer s.record("GetVersions", start)
	return s.inner.GetVersions(c, dir)
}
