package boltstore

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	bolt "github.com/boltdb/bolt"
	"github.com/stretchr/testify/suite"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

type boltStoreTestSuite struct {
	suite.Suite
	store *Store
}

func (s *boltStoreTestSuite) SetupTest() {
	path := filepath.Join(s.T().TempDir(), "drive.bolt")
	store, err := Open(path)
	s.Require().NoError(err)
	s.store = store
}

func (s *boltStoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func newCtx() *drive.Ctx {
	return nil
}

func (s *boltStoreTestSuite) TestPutGetRoundTrips() {
	var hash drive.ContentHash
	hash[0] = 0x42

	s.Require().NoError(s.store.Put(newCtx(), hash, []byte("hello")))

	data, err := s.store.Get(newCtx(), hash)
	s.Require().NoError(err)
	s.Equal([]byte("hello"), data)
}

func (s *boltStoreTestSuite) TestGetMissingFails() {
	var hash drive.ContentHash
	hash[0] = 0x99

	_, err := s.store.Get(newCtx(), hash)
	s.Require().Error(err)
	kind, ok := drive.KindOf(err)
	s.True(ok)
	s.Equal(drive.ErrNoSuchFile, kind)
}

func (s *boltStoreTestSuite) TestIncrementReferencesAccumulates() {
	var chunk drive.ChunkHash
	chunk[0] = 0x01

	s.Require().NoError(s.store.IncrementReferences(newCtx(), []drive.ChunkHash{chunk}))
	s.Require().NoError(s.store.IncrementReferences(newCtx(), []drive.ChunkHash{chunk, chunk}))

	s.Require().NoError(s.store.db.View(func(tx *bolt.Tx) error {
		s.Equal(uint64(3), binary.BigEndian.Uint64(tx.Bucket(chunksBucket).Get(chunk[:])))
		return nil
	}))
}

func (s *boltStoreTestSuite) TestAppendVersionIsAppendOnly() {
	var dir drive.DirectoryId
	dir[0] = 0x07
	var hash drive.ContentHash
	hash[0] = 0x08

	s.Require().NoError(s.store.AppendVersion(newCtx(), dir, drive.VersionName{Index: 0, ContentHash: hash}))
	err := s.store.AppendVersion(newCtx(), dir, drive.VersionName{Index: 0, ContentHash: hash})
	s.Require().Error(err)
	kind, ok := drive.KindOf(err)
	s.True(ok)
	s.Equal(drive.ErrFileExists, kind)

	s.Require().NoError(s.store.AppendVersion(newCtx(), dir, drive.VersionName{Index: 1, ContentHash: hash}))

	versions, err := s.store.GetVersions(newCtx(), dir)
	s.Require().NoError(err)
	s.Len(versions, 2)
	s.Equal(uint64(0), versions[0].Index)
	s.Equal(uint64(1), versions[1].Index)
}

func TestBoltStoreSuite(t *testing.T) {
	suite.Run(t, new(boltStoreTestSuite))
}
