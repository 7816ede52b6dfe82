package rrwlock

import (
	"context"
	"sync"
)

// RWLock is a reentrant reader/writer lock.
//
// Any number of owners may hold it for reading, or a single owner for
// writing. An owner may re-enter either side recursively; the writer may also
// take read holds, and a sole reader may upgrade to writer while keeping its
// read hold. Two readers upgrading at the same time deadlock.
//
// Readers and writers wait on one shared channel and re-check their admission
// on every release, so a steady stream of readers can keep a writer waiting
// indefinitely. Use RWLock2 where that matters.
//
// The zero value is an unlocked lock.
type RWLock struct {
	mu      sync.Mutex // guards everything below
	state   lockState
	changed event
}

// New returns an unlocked RWLock.
func New() *RWLock {
	return &RWLock{}
}

// EnterRead locks l for reading on behalf of o.
// If l is held for writing by another owner, EnterRead blocks until it is not.
func (l *RWLock) EnterRead(o Owner) {
	_ = l.EnterReadContext(context.Background(), o)
}

// EnterReadContext is EnterRead that gives up when ctx is done. On failure o
// holds nothing new and ctx.Err() is returned.
func (l *RWLock) EnterReadContext(ctx context.Context, o Owner) error {
	return l.enter(ctx, o, func() bool { return l.state.tryRead(o, true) })
}

// TryEnterRead tries to lock l for reading without blocking.
func (l *RWLock) TryEnterRead(o Owner) bool {
	l.lock(o)
	defer l.mu.Unlock()
	return l.state.tryRead(o, true)
}

// ExitRead undoes a single EnterRead by o. It panics if o holds no read lock.
func (l *RWLock) ExitRead(o Owner) {
	l.lock(o)
	released, ok := l.state.exitRead(o)
	if !ok {
		l.mu.Unlock()
		panic(errExitRead)
	}
	if released {
		l.changed.broadcast()
	}
	l.mu.Unlock()
}

// EnterWrite locks l for writing on behalf of o. It blocks until l is free,
// held for writing by o, or read-held by o alone.
func (l *RWLock) EnterWrite(o Owner) {
	_ = l.EnterWriteContext(context.Background(), o)
}

// EnterWriteContext is EnterWrite that gives up when ctx is done.
func (l *RWLock) EnterWriteContext(ctx context.Context, o Owner) error {
	return l.enter(ctx, o, func() bool { return l.state.tryWrite(o) })
}

// TryEnterWrite tries to lock l for writing without blocking.
func (l *RWLock) TryEnterWrite(o Owner) bool {
	l.lock(o)
	defer l.mu.Unlock()
	return l.state.tryWrite(o)
}

// ExitWrite undoes a single EnterWrite by o. It panics if o is not the
// writer. A read hold taken before an upgrade stays in place.
func (l *RWLock) ExitWrite(o Owner) {
	l.lock(o)
	released, ok := l.state.exitWrite(o)
	if !ok {
		l.mu.Unlock()
		panic(errExitWrite)
	}
	if released {
		l.changed.broadcast()
	}
	l.mu.Unlock()
}

// Stats returns a snapshot of l's holders.
func (l *RWLock) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.stats()
}

// Close marks l as destroyed. It panics if l is still held; any later use of
// l panics too.
func (l *RWLock) Close() {
	l.mu.Lock()
	if !l.state.free() {
		l.mu.Unlock()
		panic(errCloseHeld)
	}
	l.state.closed = true
	l.mu.Unlock()
}

// enter retries admit until it succeeds, parking on l.changed in between.
// The guard is never held while parked.
func (l *RWLock) enter(ctx context.Context, o Owner, admit func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.lock(o)
	for !admit() {
		wake := l.changed.wait()
		l.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
		l.lock(o)
	}
	l.mu.Unlock()
	return nil
}

// lock acquires the guard after validating o.
func (l *RWLock) lock(o Owner) {
	if o == 0 {
		panic(errZeroOwner)
	}
	l.mu.Lock()
	if l.state.closed {
		l.mu.Unlock()
		panic(errClosed)
	}
}
