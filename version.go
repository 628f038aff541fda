package drive

import "fmt"

// VersionName identifies one stored snapshot of a Directory within its
// version chain: a monotonically increasing index plus the content hash of
// the serialized bytes at that index. The pair, not the hash alone, is the
// identity a Listener acts on: two directories can legitimately serialize to
// the same bytes (and thus the same hash) at different points in their
// history, and the index disambiguates them.
type VersionName struct {
	Index       uint64
	ContentHash ContentHash
}

func (v VersionName) String() string {
	return fmt.Sprintf("%d:%s", v.Index, v.ContentHash)
}

// IsZero reports whether v is the unset VersionName, as held by a freshly
// constructed Directory before InitialiseVersions runs.
func (v VersionName) IsZero() bool {
	return v.Index == 0 && Identity(v.ContentHash).IsZero()
}

// Next returns the VersionName that follows v once a new snapshot with the
// given hash has been stored.
func (v VersionName) Next(hash ContentHash) VersionName {
	return VersionName{Index: v.Index + 1, ContentHash: hash}
}
