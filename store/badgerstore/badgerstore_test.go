package badgerstore

import (
	"testing"

	"github.com/stretchr/testify/suite"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

type badgerStoreTestSuite struct {
	suite.Suite
	store *Store
}

func (s *badgerStoreTestSuite) SetupTest() {
	store, err := Open(s.T().TempDir())
	s.Require().NoError(err)
	s.store = store
}

func (s *badgerStoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func newCtx() *drive.Ctx {
	return nil
}

func (s *badgerStoreTestSuite) TestPutGetRoundTrips() {
	var hash drive.ContentHash
	hash[0] = 0x42

	s.Require().NoError(s.store.Put(newCtx(), hash, []byte("hello")))

	data, err := s.store.Get(newCtx(), hash)
	s.Require().NoError(err)
	s.Equal([]byte("hello"), data)
}

func (s *badgerStoreTestSuite) TestGetMissingFails() {
	var hash drive.ContentHash
	hash[0] = 0x99

	_, err := s.store.Get(newCtx(), hash)
	s.Require().Error(err)
	kind, ok := drive.KindOf(err)
	s.True(ok)
	s.Equal(drive.ErrNoSuchFile, kind)
}

func (s *badgerStoreTestSuite) TestDeleteRemovesObject() {
	var hash drive.ContentHash
	hash[0] = 0x11

	s.Require().NoError(s.store.Put(newCtx(), hash, []byte("bytes")))
	s.Require().NoError(s.store.Delete(newCtx(), hash))

	_, err := s.store.Get(newCtx(), hash)
	s.Require().Error(err)
}

func (s *badgerStoreTestSuite) TestAppendVersionIsAppendOnly() {
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

func TestBadgerStoreSuite(t *testing.T) {
	suite.Run(t, new(badgerStoreTestSuite))
}
