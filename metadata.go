package drive

import (
	"crypto/rand"
	"time"
)

// MetaData describes one child entry within a Directory's listing: either a
// file or a nested directory. DirectoryId is non-nil exactly when the child
// is itself a directory; a nil DirectoryId means the entry's DataMapRef
// names the child's file content instead.
type MetaData struct {
	Name    string
	Size    uint64
	ModTime time.Time

	// DirectoryId is set exactly when this entry is a directory. Its
	// presence, not any separate "is directory" flag, is the source of
	// truth the rest of the package relies on.
	DirectoryId *DirectoryId

	// DataMapRef is the encoded data-map reference for a file entry. It
	// is nil when DirectoryId is set. See encoding.ChunkMapRef.
	DataMapRef []byte
}

// IsDirectory reports whether this entry names a nested directory rather
// than a file.
func (m *MetaData) IsDirectory() bool {
	return m.DirectoryId != nil
}

// Clone returns a deep copy of m, safe for the caller to mutate
// independently of the original. Directory.Serialise and the Find/
// GetChildAndIncrementCounter accessors hand out clones so a caller can
// never reach back into a Directory's internal slice.
func (m *MetaData) Clone() *MetaData {
	if m == nil {
		return nil
	}
	clone := *m
	if m.DirectoryId != nil {
		id := *m.DirectoryId
		clone.DirectoryId = &id
	}
	if m.DataMapRef != nil {
		clone.DataMapRef = append([]byte(nil), m.DataMapRef...)
	}
	return &clone
}

// File is the in-memory representation of a file child about to be attached
// to a Directory via Handler.AddFile. Unlike a directory child, a file
// carries its content reference directly; there is no separate fetch step
// to resolve it, and it schedules no store of its own (AddChild's schedule
// on the parent is what gets versioned).
type File struct {
	Meta MetaData
}

// NewFile constructs a File entry with the given name and data-map
// reference. size is the logical byte length of the file's content, as
// reported to callers; it is independent of the length of ref.
func NewFile(name string, size uint64, ref []byte) *File {
	return &File{
		Meta: MetaData{
			Name:       name,
			Size:       size,
			ModTime:    time.Now(),
			DataMapRef: append([]byte(nil), ref...),
		},
	}
}

// NewDirectoryEntry mints a fresh DirectoryId and returns the MetaData
// record a parent directory should hold for a brand new subdirectory named
// name, alongside the id itself so the caller can construct the matching
// live Directory.
func NewDirectoryEntry(name string) (*MetaData, DirectoryId) {
	var id DirectoryId
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand failing indicates a broken host environment;
		// there is no sensible recovery for an identity generator.
		panic("drive: failed to generate directory id: " + err.Error())
	}
	return &MetaData{
		Name:        name,
		ModTime:     time.Now(),
		DirectoryId: &id,
	}, id
}
