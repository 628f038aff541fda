package drive

import "time"

// MaxChunkSize is the largest chunk the backing store is expected to hold.
// Content larger than this must be split by the (out of scope)
// self-encryption layer before its reference reaches MetaData.DataMapRef.
const MaxChunkSize = 1 * 1024 * 1024

// MaxFilenameLength bounds the length of a single path component accepted
// by AddChild/RenameChild.
const MaxFilenameLength = 256

// MaxVersions is the default cap on the number of VersionName entries a
// Directory keeps in its chain before the oldest are eligible for pruning.
const MaxVersions = 100

// StoreDebounce is the default inactivity window ScheduleForStoring waits
// out before a Directory actually serializes and stores itself.
const StoreDebounce = 200 * time.Millisecond
