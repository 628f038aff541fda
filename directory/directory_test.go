package directory

import (
	"context"
	"testing"
	"time"

	drive "github.com/vtnerd/MaidSafe-Drive"
	"github.com/vtnerd/MaidSafe-Drive/encoding"
	"github.com/vtnerd/MaidSafe-Drive/store"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

func newTestCtx() *drive.Ctx {
	return drive.NewCtx(context.Background(), zap.NewNop())
}

type directoryTestSuite struct {
	suite.Suite
	store   *store.MemStore
	handler *Handler
}

func (s *directoryTestSuite) SetupTest() {
	s.store = store.NewMemStore()
	s.handler = NewHandler(s.store, 3)
}

func (s *directoryTestSuite) newRoot() (*Directory, drive.DirectoryId) {
	var rootID drive.DirectoryId
	dir, err := s.handler.CreateRoot(newTestCtx(), rootID)
	s.Require().NoError(err)
	return dir, rootID
}

func (s *directoryTestSuite) TestConstructStartsEmptyWithOneVersion() {
	dir, _ := s.newRoot()
	s.True(dir.Empty())
	s.Equal(1, dir.VersionsCount())
	s.False(dir.HasPending())
}

func (s *directoryTestSuite) TestAddDirectoryAddsOrderedChild() {
	dir, _ := s.newRoot()

	child, err := s.handler.AddDirectory(newTestCtx(), dir, "b")
	s.Require().NoError(err)
	s.NotNil(child)

	_, err = s.handler.AddDirectory(newTestCtx(), dir, "a")
	s.Require().NoError(err)

	s.True(dir.HasChild("a"))
	s.True(dir.HasChild("b"))

	first, ok := dir.GetChildAndIncrementCounter()
	s.Require().True(ok)
	s.Equal("a", first.Name)

	second, ok := dir.GetChildAndIncrementCounter()
	s.Require().True(ok)
	s.Equal("b", second.Name)

	_, ok = dir.GetChildAndIncrementCounter()
	s.False(ok)
}

func (s *directoryTestSuite) TestAddSameDirectoryNameFails() {
	dir, _ := s.newRoot()

	_, err := s.handler.AddDirectory(newTestCtx(), dir, "dup")
	s.Require().NoError(err)

	_, err = s.handler.AddDirectory(newTestCtx(), dir, "dup")
	s.Require().Error(err)
	kind, ok := drive.KindOf(err)
	s.Require().True(ok)
	s.Equal(drive.ErrFileExists, kind)
}

func (s *directoryTestSuite) TestDeleteFileRemovesChild() {
	dir, _ := s.newRoot()
	c := newTestCtx()

	ref, err := encoding.EncodeChunkMapRef(encoding.ChunkMapRef{ChunkCount: 1, TotalSize: 4})
	s.Require().NoError(err)
	file := drive.NewFile("note.txt", 4, ref)

	s.Require().NoError(s.handler.AddFile(c, dir, file))
	s.True(dir.HasChild("note.txt"))

	s.Require().NoError(s.handler.Delete(c, dir, "note.txt"))
	s.False(dir.HasChild("note.txt"))

	_, found := dir.Find("note.txt")
	s.False(found)
}

func (s *directoryTestSuite) TestDeleteMissingFails() {
	dir, _ := s.newRoot()
	err := s.handler.Delete(newTestCtx(), dir, "nope")
	s.Require().Error(err)
	kind, _ := drive.KindOf(err)
	s.Equal(drive.ErrNoSuchFile, kind)
}

func (s *directoryTestSuite) TestRenameMovesAcrossDirectories() {
	root, _ := s.newRoot()
	c := newTestCtx()

	src, err := s.handler.AddDirectory(c, root, "src")
	s.Require().NoError(err)
	dst, err := s.handler.AddDirectory(c, root, "dst")
	s.Require().NoError(err)

	ref, err := encoding.EncodeChunkMapRef(encoding.ChunkMapRef{ChunkCount: 1, TotalSize: 1})
	s.Require().NoError(err)
	file := drive.NewFile("f", 1, ref)
	s.Require().NoError(s.handler.AddFile(c, src, file))

	s.Require().NoError(s.handler.Rename(c, src, "f", dst, "f2"))
	s.False(src.HasChild("f"))
	s.True(dst.HasChild("f2"))
}

func (s *directoryTestSuite) TestRenameDirectoryUpdatesLiveParent() {
	root, _ := s.newRoot()
	c := newTestCtx()

	a, err := s.handler.AddDirectory(c, root, "a")
	s.Require().NoError(err)
	b, err := s.handler.AddDirectory(c, root, "b")
	s.Require().NoError(err)

	moved, err := s.handler.AddDirectory(c, a, "moved")
	s.Require().NoError(err)
	s.Require().NoError(s.handler.FlushAll(c))

	s.Require().NoError(s.handler.Rename(c, a, "moved", b, "moved2"))
	s.Require().NoError(s.handler.FlushAll(c))

	s.Equal(drive.ParentId(b.DirectoryID()), moved.ParentID())
	s.Equal("/b/moved2", moved.Path())
}

func (s *directoryTestSuite) TestRenameAcrossDirectoriesRestoresSourceOnNameConflict() {
	root, _ := s.newRoot()
	c := newTestCtx()

	src, err := s.handler.AddDirectory(c, root, "src")
	s.Require().NoError(err)
	dst, err := s.handler.AddDirectory(c, root, "dst")
	s.Require().NoError(err)

	ref, err := encoding.EncodeChunkMapRef(encoding.ChunkMapRef{ChunkCount: 1, TotalSize: 1})
	s.Require().NoError(err)
	s.Require().NoError(s.handler.AddFile(c, src, drive.NewFile("f", 1, ref)))
	s.Require().NoError(s.handler.AddFile(c, dst, drive.NewFile("taken", 1, ref)))

	err = s.handler.Rename(c, src, "f", dst, "taken")
	s.Require().Error(err)
	kind, ok := drive.KindOf(err)
	s.Require().True(ok)
	s.Equal(drive.ErrFileExists, kind)

	s.True(src.HasChild("f"))
	s.False(dst.HasChild("f"))
}

// TestRenameAcrossDirectoriesOppositeDirectionsDoNotDeadlock runs two renames
// moving in opposite directions between the same pair of directories
// concurrently. Both lock acquisition orders are possible depending on which
// directory is "old" and which is "new" in each call; renameAcrossDirectories
// must pick a consistent order (by DirectoryId) regardless, or this deadlocks.
func (s *directoryTestSuite) TestRenameAcrossDirectoriesOppositeDirectionsDoNotDeadlock() {
	root, _ := s.newRoot()
	c := newTestCtx()

	a, err := s.handler.AddDirectory(c, root, "a")
	s.Require().NoError(err)
	b, err := s.handler.AddDirectory(c, root, "b")
	s.Require().NoError(err)

	ref, err := encoding.EncodeChunkMapRef(encoding.ChunkMapRef{ChunkCount: 1, TotalSize: 1})
	s.Require().NoError(err)
	s.Require().NoError(s.handler.AddFile(c, a, drive.NewFile("in-a", 1, ref)))
	s.Require().NoError(s.handler.AddFile(c, b, drive.NewFile("in-b", 1, ref)))

	done := make(chan struct{}, 2)
	go func() {
		_ = s.handler.Rename(c, a, "in-a", b, "moved-from-a")
		done <- struct{}{}
	}()
	go func() {
		_ = s.handler.Rename(c, b, "in-b", a, "moved-from-b")
		done <- struct{}{}
	}()

	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-timeout:
			s.FailNow("rename deadlocked")
		}
	}
}

func (s *directoryTestSuite) TestDeferredStoreCoalescesBursts() {
	dir, _ := s.newRoot()
	dir.storeDebounce = 30 * time.Millisecond
	c := newTestCtx()

	before := dir.VersionsCount()

	for i := 0; i < 5; i++ {
		name := "burst" + string(rune('a'+i))
		_, err := s.handler.AddDirectory(c, dir, name)
		s.Require().NoError(err)
	}

	s.True(dir.HasPending())
	s.Equal(before, dir.VersionsCount())

	time.Sleep(150 * time.Millisecond)
	s.False(dir.HasPending())
	s.Equal(before+1, dir.VersionsCount())
}

func (s *directoryTestSuite) TestStoreImmediatelyIfPendingClearsPending() {
	dir, _ := s.newRoot()
	c := newTestCtx()

	_, err := s.handler.AddDirectory(c, dir, "child")
	s.Require().NoError(err)
	s.True(dir.HasPending())

	s.Require().NoError(dir.StoreImmediatelyIfPending(c))
	s.False(dir.HasPending())
}

func (s *directoryTestSuite) TestGetRehydratesAfterDroppedFromLiveSet() {
	root, rootID := s.newRoot()
	c := newTestCtx()

	child, err := s.handler.AddDirectory(c, root, "persisted")
	s.Require().NoError(err)
	childID := child.DirectoryID()

	_, err = s.handler.AddDirectory(c, child, "grandchild")
	s.Require().NoError(err)
	s.Require().NoError(child.StoreImmediatelyIfPending(c))

	// simulate the directory having been evicted from memory: drop it
	// from the live set directly rather than through any public API.
	s.handler.mu.Lock()
	delete(s.handler.live, childID)
	s.handler.mu.Unlock()

	rehydrated, err := s.handler.Get(c, drive.ParentId(rootID), childID, "/persisted")
	s.Require().NoError(err)
	s.NotSame(child, rehydrated)
	s.True(rehydrated.HasChild("grandchild"))
	s.Equal(child.VersionsCount(), rehydrated.VersionsCount())
}

func TestDirectorySuite(t *testing.T) {
	suite.Run(t, new(directoryTestSuite))
}
