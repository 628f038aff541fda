// Package fuseadapter is a thin go-fuse/v2 binding over a
// directory.Handler: it never touches chunk bytes itself, translating
// filesystem calls into Handler/Directory operations and errors into
// syscall.Errno.
package fuseadapter

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	drive "github.com/vtnerd/MaidSafe-Drive"
	"github.com/vtnerd/MaidSafe-Drive/directory"
)

// FileContent is the boundary to the out-of-scope self-encryption engine:
// given a MetaData.DataMapRef, it serves the file's bytes. The adapter
// never interprets chunk contents itself.
type FileContent interface {
	Open(ref []byte) (fs.FileHandle, error)
	New(size uint64) ([]byte, error) // produces an empty file's initial DataMapRef
}

// Node is one live inode: a Directory together with the Handler that owns
// it. Every Node embeds fs.Inode, matching go-fuse/v2's InodeEmbedder
// convention.
type Node struct {
	fs.Inode

	handler *directory.Handler
	content FileContent
	log     *zap.Logger

	dir  *directory.Directory // non-nil when this node is a directory
	meta *drive.MetaData      // this node's own entry as seen by its parent
}

var _ fs.NodeLookuper = (*Node)(nil)
var _ fs.NodeReaddirer = (*Node)(nil)
var _ fs.NodeMkdirer = (*Node)(nil)
var _ fs.NodeCreater = (*Node)(nil)
var _ fs.NodeUnlinker = (*Node)(nil)
var _ fs.NodeRmdirer = (*Node)(nil)
var _ fs.NodeRenamer = (*Node)(nil)
var _ fs.NodeGetattrer = (*Node)(nil)

// NewRoot constructs the root Node for Mount, wrapping root (already
// created or fetched via handler.CreateRoot/Get).
func NewRoot(handler *directory.Handler, content FileContent, log *zap.Logger, root *directory.Directory) *Node {
	return &Node{handler: handler, content: content, log: log, dir: root}
}

func newCtx(ctx context.Context, log *zap.Logger) *drive.Ctx {
	return drive.NewCtx(ctx, log)
}

func errnoFor(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}
	kind, ok := drive.KindOf(err)
	if !ok {
		return syscall.EIO
	}
	switch kind {
	case drive.ErrNoSuchFile:
		return syscall.ENOENT
	case drive.ErrFileExists:
		return syscall.EEXIST
	case drive.ErrInvalidParameter:
		return syscall.EINVAL
	case drive.ErrUninitialised, drive.ErrParsingError, drive.ErrStoreFailed:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}

func attrFromMeta(m *drive.MetaData, out *fuse.Attr) {
	out.Size = m.Size
	setAttrTime(out, m.ModTime)
	if m.IsDirectory() {
		out.Mode = fuse.S_IFDIR | 0755
	} else {
		out.Mode = fuse.S_IFREG | 0644
	}
}

func setAttrTime(out *fuse.Attr, t time.Time) {
	sec := uint64(t.Unix())
	nsec := uint32(t.Nanosecond())
	out.Atime, out.Mtime, out.Ctime = sec, sec, sec
	out.Atimensec, out.Mtimensec, out.Ctimensec = nsec, nsec, nsec
}

func (n *Node) childNode(m *drive.MetaData, childDir *directory.Directory) *Node {
	return &Node{handler: n.handler, content: n.content, log: n.log, dir: childDir, meta: m}
}

// Lookup resolves name within n.dir, lazily materializing a subdirectory
// node through the handler when the child is itself a directory.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	m, found := n.dir.Find(name)
	if !found {
		return nil, syscall.ENOENT
	}

	attrFromMeta(m, &out.Attr)

	var childDir *directory.Directory
	if m.IsDirectory() {
		path := n.dir.Path()
		if path == "/" {
			path = path + name
		} else {
			path = path + "/" + name
		}
		var err error
		childDir, err = n.handler.Get(newCtx(ctx, n.log), drive.ParentId(n.dir.DirectoryID()), *m.DirectoryId, path)
		if err != nil {
			return nil, errnoFor(err)
		}
	}

	node := n.childNode(m, childDir)
	mode := uint32(fuse.S_IFREG)
	if m.IsDirectory() {
		mode = fuse.S_IFDIR
	}
	return n.NewInode(ctx, node, fs.StableAttr{Mode: mode}), fs.OK
}

// Readdir enumerates n.dir's children.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.dir.ResetChildrenCounter()

	var entries []fuse.DirEntry
	for {
		m, ok := n.dir.GetChildAndIncrementCounter()
		if !ok {
			break
		}
		mode := uint32(fuse.S_IFREG)
		if m.IsDirectory() {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: m.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), fs.OK
}

// Mkdir creates a new subdirectory named name under n.
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child, err := n.handler.AddDirectory(newCtx(ctx, n.log), n.dir, name)
	if err != nil {
		return nil, errnoFor(err)
	}

	m, _ := n.dir.Find(name)
	attrFromMeta(m, &out.Attr)

	node := n.childNode(m, child)
	return n.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFDIR}), fs.OK
}

// Create adds a new, empty file named name under n.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (
	*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {

	ref, err := n.content.New(0)
	if err != nil {
		n.log.Error("fuseadapter: allocate file content failed", zap.Error(err))
		return nil, nil, 0, syscall.EIO
	}

	file := drive.NewFile(name, 0, ref)
	if err := n.handler.AddFile(newCtx(ctx, n.log), n.dir, file); err != nil {
		return nil, nil, 0, errnoFor(err)
	}

	m, _ := n.dir.Find(name)
	attrFromMeta(m, &out.Attr)

	node := n.childNode(m, nil)
	handle, err := n.content.Open(ref)
	if err != nil {
		return nil, nil, 0, syscall.EIO
	}
	return n.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFREG}), handle, 0, fs.OK
}

// Unlink removes the file named name from n.
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoFor(n.handler.Delete(newCtx(ctx, n.log), n.dir, name))
}

// Rmdir removes the subdirectory named name from n. It fails with ENOTEMPTY
// if the child still has children, matching Directory.Empty's contract.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	c := newCtx(ctx, n.log)

	m, found := n.dir.Find(name)
	if !found {
		return syscall.ENOENT
	}
	if m.IsDirectory() {
		childDir, err := n.handler.Get(c, drive.ParentId(n.dir.DirectoryID()), *m.DirectoryId, "")
		if err == nil && !childDir.Empty() {
			return syscall.ENOTEMPTY
		}
	}
	return errnoFor(n.handler.Delete(c, n.dir, name))
}

// Rename moves name from n to newName under newParent.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	dst, ok := newParent.(*Node)
	if !ok {
		return syscall.EINVAL
	}
	return errnoFor(n.handler.Rename(newCtx(ctx, n.log), n.dir, name, dst.dir, newName))
}

// Getattr reports n's own attributes as tracked by its parent's MetaData,
// or synthesizes directory attributes for the mount root, which has none.
func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.meta == nil {
		out.Mode = fuse.S_IFDIR | 0755
		setAttrTime(&out.Attr, time.Now())
		return fs.OK
	}
	attrFromMeta(n.meta, &out.Attr)
	return fs.OK
}
