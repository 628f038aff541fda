package drive

// Store is the pluggable key-value boundary every persistence backend
// implements, whether a local disk engine or a networked cluster. Nothing
// above this interface assumes anything about where the bytes actually
// live.
type Store interface {
	// Put writes the serialized snapshot under hash, overwriting any
	// existing value. Puts are idempotent: storing the same bytes twice
	// under the same hash must succeed both times.
	Put(c *Ctx, hash ContentHash, data []byte) error

	// Get returns the bytes previously Put under hash. It returns an
	// *Error with Kind ErrNoSuchFile if hash is unknown.
	Get(c *Ctx, hash ContentHash) ([]byte, error)

	// Delete removes the bytes stored under hash. Deleting an unknown
	// hash is not an error.
	Delete(c *Ctx, hash ContentHash) error

	// IncrementReferences bumps the reference count of each chunk named
	// in hashes by one, creating a zero-based counter for any hash seen
	// for the first time. It is how the store tracks chunk liveness
	// across directory snapshots that share content.
	IncrementReferences(c *Ctx, hashes []ChunkHash) error

	// AppendVersion extends dir's version chain with version, returning
	// ErrFileExists if that index is already recorded (the chain is
	// append-only).
	AppendVersion(c *Ctx, dir DirectoryId, version VersionName) error

	// GetVersions returns a directory's full version chain in
	// ascending-index order. An uninitialised directory has an empty chain
	// (possibly nil) and a nil error.
	GetVersions(c *Ctx, dir DirectoryId) ([]VersionName, error)
}
