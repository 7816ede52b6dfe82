package rrwlock

import (
	"sync"
)

// Locker returns a sync.Locker whose Lock and Unlock call l.EnterWrite(o) and
// l.ExitWrite(o).
func Locker(l ReentrantRWLock, o Owner) sync.Locker {
	return wlocker{l: l, o: o}
}

// RLocker returns a sync.Locker whose Lock and Unlock call l.EnterRead(o) and
// l.ExitRead(o).
func RLocker(l ReentrantRWLock, o Owner) sync.Locker {
	return rlocker{l: l, o: o}
}

type wlocker struct {
	l ReentrantRWLock
	o Owner
}

func (w wlocker) Lock()   { w.l.EnterWrite(w.o) }
func (w wlocker) Unlock() { w.l.ExitWrite(w.o) }

type rlocker struct {
	l ReentrantRWLock
	o Owner
}

func (r rlocker) Lock()   { r.l.EnterRead(r.o) }
func (r rlocker) Unlock() { r.l.ExitRead(r.o) }
