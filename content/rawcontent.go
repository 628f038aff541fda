// Package content is a minimal stand-in for the self-encryption engine
// fuseadapter.FileContent delegates to: it stores a file's bytes as a
// single blob in a drive.Store, addressed the same way a directory
// snapshot is, rather than chunking and encrypting them. It exists so
// cmd/drived has something real to wire up; the data map format a
// production self-encryption layer would use is out of scope here.
package content

import (
	"context"
	"crypto/sha512"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

// Store adapts a drive.Store into a fuseadapter.FileContent.
type Store struct {
	backing drive.Store
}

// New wraps backing as a FileContent implementation.
func New(backing drive.Store) *Store {
	return &Store{backing: backing}
}

func identityHash(data []byte) drive.ContentHash {
	return drive.ContentHash(sha512.Sum512(data))
}

// New allocates a fresh, empty file of size bytes and returns its
// DataMapRef: here, simply the content hash the empty blob was stored
// under.
func (s *Store) New(size uint64) ([]byte, error) {
	data := make([]byte, size)
	hash := identityHash(data)
	c := drive.NewCtx(context.Background(), zap.NewNop())
	if err := s.backing.Put(c, hash, data); err != nil {
		return nil, drive.WrapStoreErr("content.Store.New", err)
	}
	return hash[:], nil
}

// Open fetches the blob named by ref and returns a handle that buffers
// writes in memory, flushing the whole blob back under its new content
// hash on Flush.
func (s *Store) Open(ref []byte) (fs.FileHandle, error) {
	var hash drive.ContentHash
	copy(hash[:], ref)

	c := drive.NewCtx(context.Background(), zap.NewNop())
	data, err := s.backing.Get(c, hash)
	if err != nil {
		return nil, drive.WrapStoreErr("content.Store.Open", err)
	}

	return &fileHandle{backing: s.backing, data: append([]byte(nil), data...)}, nil
}

type fileHandle struct {
	mu      sync.Mutex
	backing drive.Store
	data    []byte
	dirty   bool
}

var _ fs.FileReader = (*fileHandle)(nil)
var _ fs.FileWriter = (*fileHandle)(nil)
var _ fs.FileFlusher = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(h.data)) {
		end = int64(len(h.data))
	}
	return fuse.ReadResultData(h.data[off:end]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	end := off + int64(len(data))
	if end > int64(len(h.data)) {
		grown := make([]byte, end)
		copy(grown, h.data)
		h.data = grown
	}
	copy(h.data[off:end], data)
	h.dirty = true
	return uint32(len(data)), 0
}

func (h *fileHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return 0
	}
	hash := identityHash(h.data)
	c := drive.NewCtx(context.Background(), zap.NewNop())
	if err := h.backing.Put(c, hash, h.data); err != nil {
		return syscall.EIO
	}
	h.dirty = false
	return 0
}
