package directory

import (
	"crypto/sha512"

	"golang.org/x/sync/errgroup"

	drive "github.com/vtnerd/MaidSafe-Drive"
	"github.com/vtnerd/MaidSafe-Drive/encoding"
	"github.com/vtnerd/MaidSafe-Drive/syncutil"
)

// identityHash computes the content hash a Handler stores a serialized
// directory snapshot under. ContentHash is sized for SHA-512 specifically
// so this digest fills it with no truncation or padding.
func identityHash(data []byte) drive.ContentHash {
	return drive.ContentHash(sha512.Sum512(data))
}

// reverseVersions returns a copy of versions (ascending index, as Store
// returns them) in the newest-first order Directory keeps internally.
func reverseVersions(versions []drive.VersionName) []drive.VersionName {
	out := make([]drive.VersionName, len(versions))
	for i, v := range versions {
		out[len(versions)-1-i] = v
	}
	return out
}

// Handler materializes Directory objects from a backing Store on demand and
// keeps the set of currently-live ones in memory, implementing Listener for
// each of them. It is the single point of entry a filesystem adapter (FUSE
// or otherwise) talks to: every lookup, creation, deletion and rename of a
// directory or file flows through one of its methods.
type Handler struct {
	mu   syncutil.DeferableRwMutex
	live map[drive.DirectoryId]*Directory

	store       drive.Store
	maxVersions int
}

// NewHandler constructs a Handler backed by store. maxVersions of zero or
// less falls back to drive.MaxVersions.
func NewHandler(store drive.Store, maxVersions int) *Handler {
	if maxVersions <= 0 {
		maxVersions = drive.MaxVersions
	}
	return &Handler{
		live:        make(map[drive.DirectoryId]*Directory),
		store:       store,
		maxVersions: maxVersions,
	}
}

// CreateRoot initialises a brand new, empty root directory, whose ParentID
// is its own id, and stores its first version immediately. It fails if a directory is
// already live under that id.
func (h *Handler) CreateRoot(c *drive.Ctx, rootID drive.DirectoryId) (*Directory, error) {
	h.mu.RLock()
	_, exists := h.live[rootID]
	h.mu.RUnlock()
	if exists {
		return nil, drive.NewError(drive.ErrFileExists, "Handler.CreateRoot", rootID.String(), nil)
	}

	dir := New(drive.ParentId(rootID), rootID, "/", h.maxVersions, h)

	data, err := dir.Serialise(c)
	if err != nil {
		return nil, err
	}
	contentHash := identityHash(data)
	if err := h.store.Put(c, contentHash, data); err != nil {
		return nil, drive.WrapStoreErr("Handler.CreateRoot", err)
	}
	if _, _, err := dir.InitialiseVersions(c, contentHash); err != nil {
		return nil, err
	}
	if err := h.store.AppendVersion(c, rootID, drive.VersionName{Index: 0, ContentHash: contentHash}); err != nil {
		return nil, drive.WrapStoreErr("Handler.CreateRoot", err)
	}

	h.mu.Lock()
	h.live[rootID] = dir
	h.mu.Unlock()

	return dir, nil
}

// Get returns the live Directory for id, fetching and decoding it from the
// store and registering it as live if it is not already in memory.
func (h *Handler) Get(c *drive.Ctx, parentID drive.ParentId, id drive.DirectoryId, path string) (*Directory, error) {
	h.mu.RLock()
	dir, ok := h.live[id]
	h.mu.RUnlock()
	if ok {
		return dir, nil
	}

	versions, err := h.store.GetVersions(c, id)
	if err != nil {
		return nil, drive.WrapStoreErr("Handler.Get", err)
	}
	if len(versions) == 0 {
		return nil, drive.NewError(drive.ErrNoSuchFile, "Handler.Get", path, nil)
	}
	newestFirst := reverseVersions(versions)

	data, err := h.store.Get(c, newestFirst[0].ContentHash)
	if err != nil {
		return nil, drive.WrapStoreErr("Handler.Get", err)
	}

	directoryID, maxVersions, children, err := encoding.DecodeDirectory(data)
	if err != nil {
		return nil, drive.NewError(drive.ErrParsingError, "Handler.Get", path, err)
	}
	if directoryID != id {
		return nil, drive.NewError(drive.ErrParsingError, "Handler.Get", path,
			nil)
	}

	dir = Restore(parentID, id, path, maxVersions, children, newestFirst, h)

	h.mu.Lock()
	if existing, ok := h.live[id]; ok {
		h.mu.Unlock()
		return existing, nil
	}
	h.live[id] = dir
	h.mu.Unlock()

	return dir, nil
}

// AddDirectory creates a new subdirectory named name under parent, stores
// its first version, links it into parent's listing, and registers it as
// live. AddDirectory fails with ErrFileExists if name is already taken in
// parent.
func (h *Handler) AddDirectory(c *drive.Ctx, parent *Directory, name string) (*Directory, error) {
	if parent.HasChild(name) {
		return nil, drive.NewError(drive.ErrFileExists, "Handler.AddDirectory", name, nil)
	}

	entry, childID := drive.NewDirectoryEntry(name)
	childPath := joinPath(parent.Path(), name)
	child := New(drive.ParentId(parent.DirectoryID()), childID, childPath, h.maxVersions, h)

	data, err := child.Serialise(c)
	if err != nil {
		return nil, err
	}
	contentHash := identityHash(data)
	if err := h.store.Put(c, contentHash, data); err != nil {
		return nil, drive.WrapStoreErr("Handler.AddDirectory", err)
	}
	if _, _, err := child.InitialiseVersions(c, contentHash); err != nil {
		return nil, err
	}
	if err := h.store.AppendVersion(c, childID, drive.VersionName{Index: 0, ContentHash: contentHash}); err != nil {
		return nil, drive.WrapStoreErr("Handler.AddDirectory", err)
	}

	if err := parent.AddChild(c, entry); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.live[childID] = child
	h.mu.Unlock()

	return child, nil
}

// AddFile attaches a file entry named name directly under parent.
func (h *Handler) AddFile(c *drive.Ctx, parent *Directory, file *drive.File) error {
	return parent.AddChild(c, &file.Meta)
}

// Delete removes the child named name from parent. If the child is itself a
// directory, Delete also drops it from the live set; the caller is
// responsible for verifying it is empty beforehand, matching
// Directory.Empty's contract.
func (h *Handler) Delete(c *drive.Ctx, parent *Directory, name string) error {
	removed, err := parent.RemoveChild(c, name)
	if err != nil {
		return err
	}
	if removed.IsDirectory() {
		h.mu.Lock()
		delete(h.live, *removed.DirectoryId)
		h.mu.Unlock()
	}
	return nil
}

// Rename moves the child named oldName from oldParent to newName under
// newParent, which may be the same directory. It fails with ErrFileExists
// if newName is already taken in newParent. When the parents differ and the
// child is a live subdirectory, its own ParentID/Path are updated via
// SetNewParent so they take effect atomically with its next store; a rename
// within one directory leaves a live subdirectory's own Path unchanged.
//
// When oldParent and newParent differ, the remove and the insert happen
// inside a single critical section that holds both directories' mutexes, so
// a concurrent lister can never observe the child in neither parent.
func (h *Handler) Rename(c *drive.Ctx, oldParent *Directory, oldName string, newParent *Directory, newName string) error {
	if oldParent == newParent {
		return renameWithinDirectory(c, oldParent, oldName, newName)
	}
	return h.renameAcrossDirectories(c, oldParent, oldName, newParent, newName)
}

// renameWithinDirectory handles the same-parent case, where a single lock
// already makes RenameChild atomic. It rejects a newName that is already
// taken, the check RenameChild leaves to its caller.
func renameWithinDirectory(c *drive.Ctx, parent *Directory, oldName, newName string) error {
	if oldName != newName && parent.HasChild(newName) {
		return drive.NewError(drive.ErrFileExists, "Handler.Rename", newName, nil)
	}
	return parent.RenameChild(c, oldName, newName)
}

// renameAcrossDirectories moves a child between two distinct live
// directories. It locks both in ascending DirectoryId order, regardless of
// which one is the rename's source or destination, so two renames running
// in opposite directions between the same pair of directories can never
// deadlock against each other.
func (h *Handler) renameAcrossDirectories(c *drive.Ctx, oldParent *Directory, oldName string, newParent *Directory, newName string) error {
	first, second := oldParent, newParent
	if !first.DirectoryID().Less(second.DirectoryID()) {
		first, second = second, first
	}

	first.mu.Lock()
	second.mu.Lock()
	child, err := renameLocked_(c, oldParent, oldName, newParent, newName)
	second.mu.Unlock()
	first.mu.Unlock()

	if err != nil {
		return err
	}

	if child.IsDirectory() {
		h.mu.RLock()
		live, ok := h.live[*child.DirectoryId]
		h.mu.RUnlock()
		if ok {
			newPath := joinPath(newParent.Path(), newName)
			live.SetNewParent(c, drive.ParentId(newParent.DirectoryID()), newPath)
			live.ScheduleForStoring(c)
		}
	}

	return nil
}

// renameLocked_ must be called with both oldParent.mu and newParent.mu held.
// It performs the existence check, removal and insertion as one atomic
// step, restoring oldParent on failure, then schedules both directories for
// storing.
func renameLocked_(c *drive.Ctx, oldParent *Directory, oldName string, newParent *Directory, newName string) (*drive.MetaData, error) {
	if _, found := newParent.find_(newName); found {
		return nil, drive.NewError(drive.ErrFileExists, "Handler.Rename", newName, nil)
	}

	child, err := oldParent.removeChild_(oldName)
	if err != nil {
		return nil, err
	}
	child.Name = newName

	if err := newParent.addChild_(child); err != nil {
		child.Name = oldName
		_ = oldParent.addChild_(child)
		return nil, err
	}

	oldParent.scheduleForStoring_(c)
	newParent.scheduleForStoring_(c)

	return child, nil
}

// FlushAll stores every live directory with a pending write, fanning out
// over the live set so unmount's "block until every HasPending() is false"
// requirement completes in bounded wall-clock time regardless of how many
// directories are live. Each goroutine only ever calls into one directory's
// own already-synchronized public API, so this adds no new lock ordering
// beyond what StoreImmediatelyIfPending itself already respects.
func (h *Handler) FlushAll(c *drive.Ctx) error {
	h.mu.RLock()
	dirs := make([]*Directory, 0, len(h.live))
	for _, d := range h.live {
		dirs = append(dirs, d)
	}
	h.mu.RUnlock()

	var g errgroup.Group
	for _, d := range dirs {
		d := d
		g.Go(func() error {
			return d.StoreImmediatelyIfPending(c)
		})
	}
	return g.Wait()
}

// Put implements Listener: it serializes dir, stores the resulting bytes
// under their content hash, and advances dir's version chain to record the
// new version.
func (h *Handler) Put(c *drive.Ctx, dir *Directory) error {
	data, err := dir.Serialise(c)
	if err != nil {
		return err
	}

	contentHash := identityHash(data)
	if err := h.store.Put(c, contentHash, data); err != nil {
		return drive.WrapStoreErr("Handler.Put", err)
	}

	directoryID, _, next, err := dir.AddNewVersion(c, contentHash)
	if err != nil {
		return err
	}
	if err := h.store.AppendVersion(c, directoryID, next); err != nil {
		return drive.WrapStoreErr("Handler.Put", err)
	}
	return nil
}

// IncrementChunks implements Listener by forwarding straight to the store.
func (h *Handler) IncrementChunks(c *drive.Ctx, chunks []drive.ChunkHash) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := h.store.IncrementReferences(c, chunks); err != nil {
		return drive.WrapStoreErr("Handler.IncrementChunks", err)
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
