// Package rrwlock provides reentrant reader/writer locks: an owner holding the
// lock may enter it again, the writer may also read, and a sole reader may
// upgrade to writer.
package rrwlock

import (
	"context"
	"sync/atomic"
)

// Owner identifies the holder of a lock. It stands in for the calling thread:
// every Enter/Exit pair must be issued with the same Owner, and an Owner must
// not be used by two goroutines at the same time.
//
// The zero Owner is invalid.
type Owner uint64

var lastOwner atomic.Uint64

// NewOwner returns a process-unique Owner.
func NewOwner() Owner {
	return Owner(lastOwner.Add(1))
}

// ReentrantRWLock is a reader/writer lock that an owner may re-acquire
// recursively, and that a sole reader may upgrade to a writer without
// releasing its read hold.
type ReentrantRWLock interface {
	EnterRead(o Owner)
	EnterReadContext(ctx context.Context, o Owner) error
	TryEnterRead(o Owner) bool
	ExitRead(o Owner)

	EnterWrite(o Owner)
	EnterWriteContext(ctx context.Context, o Owner) error
	TryEnterWrite(o Owner) bool
	ExitWrite(o Owner)

	Stats() Stats
	Close()
}

// Stats is a snapshot of a lock's bookkeeping.
type Stats struct {
	Readers        map[Owner]int // read recursion count per owner
	Writer         Owner         // zero if no writer
	WriterDepth    int
	WaitingWriters int // always zero for RWLock
}

// Free reports whether nobody holds the lock.
func (s Stats) Free() bool {
	return len(s.Readers) == 0 && s.Writer == 0
}

var (
	_ ReentrantRWLock = (*RWLock)(nil)
	_ ReentrantRWLock = (*RWLock2)(nil)
)
