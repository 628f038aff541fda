// Package directory implements the directory and versioning subsystem: the
// in-memory Directory entity, its deferred-write policy and multi-version
// history, and the DirectoryHandler that materializes directories from
// storage and flushes them back. This is the hard engineering the rest of
// the module exists to support.
package directory

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	drive "github.com/vtnerd/MaidSafe-Drive"
	"github.com/vtnerd/MaidSafe-Drive/encoding"
	"github.com/vtnerd/MaidSafe-Drive/syncutil"
)

// storeState tracks where a Directory sits in the Complete -> Pending ->
// Ongoing -> Complete cycle described in the teacher's own state-machine
// comments on Directory.dirty/sync, generalized here to a named enum.
type storeState int

const (
	storeComplete storeState = iota
	storePending
	storeOngoing
)

func (s storeState) String() string {
	switch s {
	case storePending:
		return "pending"
	case storeOngoing:
		return "ongoing"
	default:
		return "complete"
	}
}

type parentChange struct {
	parentID drive.ParentId
	path     string
}

// Directory is the in-memory representation of one filesystem directory:
// its identity, its ordered child listing, its version history, and the
// single inactivity timer that coalesces bursts of mutation into one
// store. Every exported method is safe for concurrent use; mu guards every
// field below it.
type Directory struct {
	mu syncutil.DeferableMutex

	parentID    drive.ParentId
	directoryID drive.DirectoryId
	path        string

	children []*drive.MetaData // sorted by Name; see find_
	cursor   int               // children_count_position

	maxVersions int
	versions    []drive.VersionName // newest first, len <= maxVersions

	storeState          storeState
	pendingCount        int
	pendingParentChange *parentChange

	listener Listener

	storeDebounce time.Duration
	storeTimer    *time.Timer
	timerGen      uint64
}

// New constructs a Directory with no versions and no children, ready to be
// registered with a DirectoryHandler and immediately initialised via a
// first store. Most callers should go through Handler.AddDirectory/Get
// instead of calling New directly.
func New(parentID drive.ParentId, directoryID drive.DirectoryId, path string,
	maxVersions int, listener Listener) *Directory {

	if maxVersions <= 0 {
		maxVersions = drive.MaxVersions
	}
	return &Directory{
		parentID:      parentID,
		directoryID:   directoryID,
		path:          path,
		maxVersions:   maxVersions,
		listener:      listener,
		storeDebounce: drive.StoreDebounce,
	}
}

// Restore rebuilds a Directory from a previously decoded snapshot and its
// stored version chain, as DirectoryHandler.Get does after fetching bytes
// from the store. children must already be sorted by name (DecodeDirectory
// guarantees this); versions must already be newest-first.
func Restore(parentID drive.ParentId, directoryID drive.DirectoryId, path string,
	maxVersions int, children []*drive.MetaData, versions []drive.VersionName,
	listener Listener) *Directory {

	d := New(parentID, directoryID, path, maxVersions, listener)
	d.children = children
	d.versions = versions
	return d
}

// find_ returns the index of name within d.children, or the index it would
// be inserted at if absent. Callers must hold d.mu.
func (d *Directory) find_(name string) (idx int, found bool) {
	idx = sort.Search(len(d.children), func(i int) bool {
		return d.children[i].Name >= name
	})
	found = idx < len(d.children) && d.children[idx].Name == name
	return idx, found
}

// HasChild reports whether name currently names a child of d.
func (d *Directory) HasChild(name string) bool {
	defer d.mu.Lock().Unlock()
	_, found := d.find_(name)
	return found
}

// Find returns a copy of the child named name, and whether it exists.
func (d *Directory) Find(name string) (*drive.MetaData, bool) {
	defer d.mu.Lock().Unlock()
	idx, found := d.find_(name)
	if !found {
		return nil, false
	}
	return d.children[idx].Clone(), true
}

// GetChildAndIncrementCounter returns the child at the current enumeration
// cursor and advances it, or reports false once the cursor reaches the end
// of the listing. Used by directory enumeration (readdir).
func (d *Directory) GetChildAndIncrementCounter() (*drive.MetaData, bool) {
	defer d.mu.Lock().Unlock()
	if d.cursor >= len(d.children) {
		return nil, false
	}
	m := d.children[d.cursor].Clone()
	d.cursor++
	return m, true
}

// ResetChildrenCounter rewinds the enumeration cursor to the first child.
func (d *Directory) ResetChildrenCounter() {
	defer d.mu.Lock().Unlock()
	d.cursor = 0
}

func validChildName(name string) bool {
	return name != "" &&
		len(name) <= drive.MaxFilenameLength &&
		!strings.ContainsRune(name, '/')
}

// addChild_ must be called with d.mu held. It is the lock-held half of
// AddChild, split out so Handler.Rename can run it against two directories
// already locked together in DirectoryId order, without an intervening
// unlock between the remove and the insert.
func (d *Directory) addChild_(child *drive.MetaData) error {
	idx, found := d.find_(child.Name)
	if found {
		return drive.NewError(drive.ErrFileExists, "Directory.AddChild", child.Name, nil)
	}

	entry := child.Clone()
	d.children = append(d.children, nil)
	copy(d.children[idx+1:], d.children[idx:])
	d.children[idx] = entry
	d.cursor = 0
	return nil
}

// AddChild inserts child into the listing. It fails with ErrFileExists if a
// child with the same name is already present, and with
// ErrInvalidParameter if the name is empty, too long, or not a single path
// component. On success it schedules a deferred store.
func (d *Directory) AddChild(c *drive.Ctx, child *drive.MetaData) error {
	if !validChildName(child.Name) {
		return drive.NewError(drive.ErrInvalidParameter, "Directory.AddChild", child.Name, nil)
	}

	defer d.mu.Lock().Unlock()

	if err := d.addChild_(child); err != nil {
		return err
	}
	d.scheduleForStoring_(c)
	return nil
}

// removeChild_ must be called with d.mu held; see addChild_.
func (d *Directory) removeChild_(name string) (*drive.MetaData, error) {
	idx, found := d.find_(name)
	if !found {
		return nil, drive.NewError(drive.ErrNoSuchFile, "Directory.RemoveChild", name, nil)
	}

	removed := d.children[idx]
	d.children = append(d.children[:idx], d.children[idx+1:]...)
	d.cursor = 0
	return removed, nil
}

// RemoveChild removes and returns the child named name. It fails with
// ErrNoSuchFile if absent. On success it schedules a deferred store.
func (d *Directory) RemoveChild(c *drive.Ctx, name string) (*drive.MetaData, error) {
	defer d.mu.Lock().Unlock()

	removed, err := d.removeChild_(name)
	if err != nil {
		return nil, err
	}
	d.scheduleForStoring_(c)
	return removed, nil
}

// RenameChild renames the child named oldName to newName in place. The
// caller (Handler.Rename) is responsible for enforcing that newName is not
// already taken before calling this; RenameChild itself does not check it,
// and fails only with ErrInvalidParameter for an invalid newName or with
// ErrNoSuchFile when oldName is absent.
func (d *Directory) RenameChild(c *drive.Ctx, oldName, newName string) error {
	if !validChildName(newName) {
		return drive.NewError(drive.ErrInvalidParameter, "Directory.RenameChild", newName, nil)
	}

	defer d.mu.Lock().Unlock()

	idx, found := d.find_(oldName)
	if !found {
		return drive.NewError(drive.ErrNoSuchFile, "Directory.RenameChild", oldName, nil)
	}

	entry := d.children[idx]
	d.children = append(d.children[:idx], d.children[idx+1:]...)
	entry.Name = newName

	newIdx, _ := d.find_(newName)
	d.children = append(d.children, nil)
	copy(d.children[newIdx+1:], d.children[newIdx:])
	d.children[newIdx] = entry

	d.cursor = 0
	d.scheduleForStoring_(c)
	return nil
}

// Empty reports whether d currently has no children.
func (d *Directory) Empty() bool {
	defer d.mu.Lock().Unlock()
	return len(d.children) == 0
}

// ParentID returns the directory this Directory currently considers its
// parent. It changes across a rename; DirectoryID never does.
func (d *Directory) ParentID() drive.ParentId {
	defer d.mu.Lock().Unlock()
	return d.parentID
}

// DirectoryID returns the identity assigned to this Directory at creation.
// It never changes, so it is safe to read without the mutex, but the
// accessor is kept symmetrical with ParentID for callers that don't want to
// special-case it.
func (d *Directory) DirectoryID() drive.DirectoryId {
	return d.directoryID
}

// Path returns the directory's current path, as last established by
// construction or by an applied parent change.
func (d *Directory) Path() string {
	defer d.mu.Lock().Unlock()
	return d.path
}

// SetNewParent records a pending reparenting: d.parentID and d.path will
// become parentID and path, but only once the next store this directory
// performs has completed. Deferring the application keeps the bytes
// serialized mid-flight consistent with whichever parent was in effect when
// the store was scheduled.
func (d *Directory) SetNewParent(c *drive.Ctx, parentID drive.ParentId, path string) {
	defer d.mu.Lock().Unlock()
	d.pendingParentChange = &parentChange{parentID: parentID, path: path}
}

// applyPendingParentChange_ must be called with d.mu held.
func (d *Directory) applyPendingParentChange_() {
	if d.pendingParentChange == nil {
		return
	}
	d.parentID = d.pendingParentChange.parentID
	d.path = d.pendingParentChange.path
	d.pendingParentChange = nil
}

// HasPending reports whether at least one arming of the deferred-store
// timer has not yet had its decrement applied. This is a counter of
// armings still owed a decrement, not a count of stores currently
// in-flight: a caller racing ScheduleForStoring against
// StoreImmediatelyIfPending may transiently observe a count greater than
// one even though only one store will actually run.
func (d *Directory) HasPending() bool {
	defer d.mu.Lock().Unlock()
	return d.pendingCount != 0
}

// VersionsCount returns the number of entries currently in the version
// chain.
func (d *Directory) VersionsCount() int {
	defer d.mu.Lock().Unlock()
	return len(d.versions)
}

// Versions returns a copy of the version chain, newest first.
func (d *Directory) Versions() []drive.VersionName {
	defer d.mu.Lock().Unlock()
	return append([]drive.VersionName(nil), d.versions...)
}

// InitialiseVersions installs the first version of a brand new directory.
// It fails with ErrUninitialised if the directory already has a version
// chain -- despite the name, that error kind denotes "not in the
// uninitialised state this call requires", matching the wording the
// original implementation uses for the same guard.
func (d *Directory) InitialiseVersions(c *drive.Ctx, versionID drive.ContentHash) (
	drive.DirectoryId, drive.VersionName, error) {

	defer d.mu.Lock().Unlock()

	if len(d.versions) != 0 {
		return drive.DirectoryId{}, drive.VersionName{},
			drive.NewError(drive.ErrUninitialised, "Directory.InitialiseVersions", d.path, nil)
	}

	v := drive.VersionName{Index: 0, ContentHash: versionID}
	d.versions = []drive.VersionName{v}
	d.storeState = storeComplete
	return d.directoryID, v, nil
}

// AddNewVersion appends a new version to the chain, dropping the oldest
// entry if the chain would otherwise exceed maxVersions. If the chain was
// empty, it behaves exactly like InitialiseVersions and returns a zero
// previous version.
func (d *Directory) AddNewVersion(c *drive.Ctx, versionID drive.ContentHash) (
	dirID drive.DirectoryId, previous drive.VersionName, next drive.VersionName, err error) {

	defer d.mu.Lock().Unlock()

	if len(d.versions) == 0 {
		v := drive.VersionName{Index: 0, ContentHash: versionID}
		d.versions = []drive.VersionName{v}
		d.storeState = storeComplete
		return d.directoryID, drive.VersionName{}, v, nil
	}

	previous = d.versions[0]
	next = previous.Next(versionID)
	d.versions = append([]drive.VersionName{next}, d.versions...)
	if len(d.versions) > d.maxVersions {
		d.versions = d.versions[:d.maxVersions]
	}
	d.storeState = storeComplete
	return d.directoryID, previous, next, nil
}

// Serialise encodes d's current children into the canonical on-store
// format, incrementing the reference count of every chunk its file
// children reference along the way. It transitions storeState to Ongoing
// just before returning the encoded bytes; InitialiseVersions or
// AddNewVersion is expected to transition it back to Complete once the
// caller has durably committed those bytes.
func (d *Directory) Serialise(c *drive.Ctx) ([]byte, error) {
	d.mu.Lock()
	snapshot := make([]*drive.MetaData, len(d.children))
	for i, m := range d.children {
		snapshot[i] = m.Clone()
	}
	directoryID, maxVersions, path := d.directoryID, d.maxVersions, d.path
	d.mu.Unlock()

	chunks := collectChunkRefs(snapshot)
	if len(chunks) > 0 {
		if err := d.listener.IncrementChunks(c, chunks); err != nil {
			return nil, drive.WrapStoreErr("Directory.Serialise", err)
		}
	}

	data, err := encoding.EncodeDirectory(directoryID, maxVersions, snapshot)
	if err != nil {
		return nil, drive.NewError(drive.ErrParsingError, "Directory.Serialise", path, err)
	}

	d.mu.Lock()
	d.storeState = storeOngoing
	d.mu.Unlock()

	return data, nil
}

// collectChunkRefs decodes the ChunkMapRef embedded in every file child and
// returns the set of distinct root chunk hashes they reference, in
// children order.
func collectChunkRefs(children []*drive.MetaData) []drive.ChunkHash {
	seen := make(map[drive.ChunkHash]struct{}, len(children))
	var out []drive.ChunkHash
	for _, m := range children {
		if m.IsDirectory() || len(m.DataMapRef) == 0 {
			continue
		}
		ref, err := encoding.DecodeChunkMapRef(m.DataMapRef)
		if err != nil {
			continue
		}
		hash := drive.ChunkHash(ref.RootHash)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		out = append(out, hash)
	}
	return out
}

// ScheduleForStoring arms (or re-arms) the inactivity timer that coalesces
// bursts of mutation into a single store. See scheduleForStoring_ for the
// pending_count bookkeeping this implements.
func (d *Directory) ScheduleForStoring(c *drive.Ctx) {
	defer d.mu.Lock().Unlock()
	d.scheduleForStoring_(c)
}

// scheduleForStoring_ must be called with d.mu held. It increments
// pendingCount for this arming; if it supersedes a still-pending timer that
// it succeeds in stopping before it fires, it also releases that prior
// arming's count immediately, synchronously, rather than waiting for a
// callback that will now never run. If the prior timer had already begun
// firing, Stop reports failure and the prior arming's own callback is left
// to decrement pendingCount itself -- a race that can transiently leave
// pendingCount above one, as documented on HasPending.
func (d *Directory) scheduleForStoring_(c *drive.Ctx) {
	if d.storeTimer != nil && d.storeTimer.Stop() {
		d.pendingCount--
	}

	d.timerGen++
	gen := d.timerGen
	d.pendingCount++
	d.storeState = storePending

	d.storeTimer = time.AfterFunc(d.storeDebounce, func() {
		d.processTimer(c, gen)
	})
}

// processTimer runs on the shared timer goroutine when an arming's delay
// elapses. If a later arming has since superseded this one, it only
// releases this arming's pendingCount contribution; otherwise it runs the
// store.
func (d *Directory) processTimer(c *drive.Ctx, gen uint64) {
	d.mu.Lock()
	if gen != d.timerGen {
		d.pendingCount--
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if err := d.store_(c); err != nil {
		c.Log.Warn("deferred directory store failed", zap.Error(err))
	}
}

// store_ invokes the listener's Put outside the mutex (Put re-enters the
// handler and must never be called while a directory's own lock is held),
// then reacquires the mutex to apply any pending parent change and release
// this arming's pendingCount contribution. The caller must have already
// incremented pendingCount for the arming being serviced and must not hold
// d.mu.
func (d *Directory) store_(c *drive.Ctx) error {
	err := d.listener.Put(c, d)

	d.mu.Lock()
	if err == nil {
		d.applyPendingParentChange_()
	}
	d.pendingCount--
	d.mu.Unlock()

	return err
}

// StoreImmediatelyIfPending brings a pending deferred store forward: if no
// store is currently pending, it does nothing. Otherwise it cancels the
// timer, asserts that the cancellation actually stopped it (a caller
// observing storePending should never lose the race with the timer's own
// goroutine, since nothing else clears storePending), and runs the store
// synchronously. This is what unmount and a Directory's best-effort
// teardown flush both call.
func (d *Directory) StoreImmediatelyIfPending(c *drive.Ctx) error {
	d.mu.Lock()
	if d.storeState != storePending {
		d.mu.Unlock()
		return nil
	}

	stopped := d.storeTimer.Stop()
	syncutil.Assert(stopped, "StoreImmediatelyIfPending: timer for directory %s already fired", d.path)
	d.timerGen++
	d.mu.Unlock()

	return d.store_(c)
}

// Close flushes any pending store best-effort and swallows the error after
// logging it: losing the final coalesced write during teardown is judged
// preferable to the alternative of blocking or panicking during shutdown.
func (d *Directory) Close(c *drive.Ctx) {
	if err := d.StoreImmediatelyIfPending(c); err != nil {
		c.Log.Warn("best-effort flush on close failed", zap.Error(err))
	}
}
