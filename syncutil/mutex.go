// Package syncutil provides the locking and invariant-checking primitives
// shared by the directory subsystem, in the teacher's own style: mutexes
// whose unlock can be deferred in one line, and panicking assertions for
// conditions that must never be false outside a programmer error.
package syncutil

import (
	"runtime"
	"sync"

	"github.com/silentred/gid"
)

// DeferableMutex is a sync.Mutex whose Lock returns the handle to unlock,
// so callers can write defer df.Lock().Unlock() instead of a separate
// defer statement above the lock call.
type DeferableMutex struct {
	lock sync.Mutex
}

func (df *DeferableMutex) Lock() *sync.Mutex {
	df.lock.Lock()
	return &df.lock
}

func (df *DeferableMutex) Unlock() {
	df.lock.Unlock()
}

// NeedReadUnlock and NeedWriteUnlock return the lock via a narrow interface
// so a caller cannot accidentally pair RLock() with Unlock() or vice versa.
type NeedReadUnlock interface {
	RUnlock()
}

type NeedWriteUnlock interface {
	Unlock()
}

// DeferableRwMutex is a sync.RWMutex with the same deferred-unlock
// convenience, plus an optional debug check that a single goroutine never
// recursively RLocks the same mutex (which deadlocks the moment a writer is
// waiting).
type DeferableRwMutex struct {
	lock sync.RWMutex

	// IDs of goroutines which are holding this lock for read.
	readHolderLock DeferableMutex
	readHolders    map[int64]uintptr
}

// CheckForRecursiveRLock enables the recursive-RLock debug check across all
// DeferableRwMutex values. It is a package-level switch, not per-instance,
// so a single test binary can flip it on without threading a flag through
// every constructor.
var CheckForRecursiveRLock bool

func (df *DeferableRwMutex) RLock() NeedReadUnlock {
	if CheckForRecursiveRLock {
		defer df.readHolderLock.Lock().Unlock()
		goid := gid.Get()
		if df.readHolders == nil {
			df.readHolders = make(map[int64]uintptr)
		}
		pc, alreadyHeld := df.readHolders[goid]
		if alreadyHeld {
			f := runtime.FuncForPC(pc)
			file, line := f.FileLine(pc)
			Assert(!alreadyHeld, "goroutine %d attempted to RLock twice, previously at %s:%d",
				goid, file, line)
		}
		pc, _, _, _ = runtime.Caller(1)
		df.readHolders[goid] = pc
	}

	df.lock.RLock()
	return df
}

func (df *DeferableRwMutex) RUnlock() {
	if CheckForRecursiveRLock {
		defer df.readHolderLock.Lock().Unlock()
		delete(df.readHolders, gid.Get())
	}
	df.lock.RUnlock()
}

func (df *DeferableRwMutex) Lock() NeedWriteUnlock {
	df.lock.Lock()
	return &df.lock
}

func (df *DeferableRwMutex) Unlock() {
	df.lock.Unlock()
}
