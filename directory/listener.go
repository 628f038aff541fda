package directory

import drive "github.com/vtnerd/MaidSafe-Drive"

// Listener is the upward contract a Directory uses to talk back to its
// DirectoryHandler: the capability set {Put, IncrementChunks}. A Directory
// holds this as a weak back-reference in spirit — it never outlives the
// handler that installed it, but Go's garbage collector makes the
// C++-style weak_ptr unnecessary; holding a plain interface value is
// sufficient as long as nothing but the handler ever implements Listener.
type Listener interface {
	// Put serializes dir and durably commits it: write the serialized
	// bytes to the store, mint a new VersionName from their content
	// hash, and advance dir's version chain to record it. Called
	// outside dir's mutex.
	Put(c *drive.Ctx, dir *Directory) error

	// IncrementChunks forwards a batch of chunk reference-count
	// increments to the backing store, ahead of the version commit
	// that newly references them.
	IncrementChunks(c *drive.Ctx, chunks []drive.ChunkHash) error
}
