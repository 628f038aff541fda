package fuseadapter

import (
	"syscall"
	"testing"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/require"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

func TestErrnoForMapsKnownKinds(t *testing.T) {
	require.Equal(t, fs.OK, errnoFor(nil))

	cases := []struct {
		kind  drive.ErrKind
		errno syscall.Errno
	}{
		{drive.ErrNoSuchFile, syscall.ENOENT},
		{drive.ErrFileExists, syscall.EEXIST},
		{drive.ErrInvalidParameter, syscall.EINVAL},
		{drive.ErrStoreFailed, syscall.EIO},
	}
	for _, tc := range cases {
		err := drive.NewError(tc.kind, "op", "p", nil)
		require.Equal(t, tc.errno, errnoFor(err))
	}
}

func TestErrnoForUnknownErrorIsEIO(t *testing.T) {
	require.Equal(t, syscall.EIO, errnoFor(errPlain{}))
}

type errPlain struct{}

func (errPlain) Error() string { return "boom" }

func TestAttrFromMetaSetsModeByKind(t *testing.T) {
	var out fuse.Attr
	file := &drive.MetaData{Name: "f", Size: 12, ModTime: time.Unix(100, 0)}
	attrFromMeta(file, &out)
	require.Equal(t, uint32(fuse.S_IFREG|0644), out.Mode)
	require.Equal(t, uint64(12), out.Size)

	_, id := drive.NewDirectoryEntry("d")
	dir := &drive.MetaData{Name: "d", DirectoryId: &id}
	attrFromMeta(dir, &out)
	require.Equal(t, uint32(fuse.S_IFDIR|0755), out.Mode)
}

func TestSetAttrTimeFillsAllSixFields(t *testing.T) {
	var out fuse.Attr
	setAttrTime(&out, time.Unix(1700000000, 123))
	require.Equal(t, out.Atime, out.Mtime)
	require.Equal(t, out.Mtime, out.Ctime)
	require.Equal(t, uint64(1700000000), out.Atime)
	require.Equal(t, uint32(123), out.Atimensec)
	require.Equal(t, uint32(123), out.Mtimensec)
	require.Equal(t, uint32(123), out.Ctimensec)
}
