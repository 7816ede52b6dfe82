package rrwlock

import (
	"context"
	"sync"
)

// RWLock2 is RWLock with writer preference: once a writer is waiting, no
// owner that is not already reading is admitted as a new reader. A waiting
// writer therefore only waits for the readers that were in when it arrived.
//
// Reentrant reads, reads by the active writer and upgrades behave as in
// RWLock.
//
// The zero value is an unlocked lock.
type RWLock2 struct {
	mu             sync.Mutex // guards everything below
	state          lockState
	waitingWriters int   // writers parked in EnterWrite
	readable       event // new readers park here
	writable       event // writers park here
}

// New2 returns an unlocked RWLock2.
func New2() *RWLock2 {
	return &RWLock2{}
}

// EnterRead locks l for reading on behalf of o.
func (l *RWLock2) EnterRead(o Owner) {
	_ = l.EnterReadContext(context.Background(), o)
}

// EnterReadContext is EnterRead that gives up when ctx is done.
func (l *RWLock2) EnterReadContext(ctx context.Context, o Owner) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.lock(o)
	for !l.tryRead(o) {
		wake := l.readable.wait()
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

// TryEnterRead tries to lock l for reading without blocking. It fails for a
// new reader whenever a writer is waiting.
func (l *RWLock2) TryEnterRead(o Owner) bool {
	l.lock(o)
	defer l.mu.Unlock()
	return l.tryRead(o)
}

func (l *RWLock2) tryRead(o Owner) bool {
	return l.state.tryRead(o, l.waitingWriters == 0)
}

// ExitRead undoes a single EnterRead by o. It panics if o holds no read lock.
func (l *RWLock2) ExitRead(o Owner) {
	l.lock(o)
	released, ok := l.state.exitRead(o)
	if !ok {
		l.mu.Unlock()
		panic(errExitRead)
	}
	if released {
		l.wakeAll()
	}
	l.mu.Unlock()
}

// EnterWrite locks l for writing on behalf of o. While it waits, new readers
// are held back.
func (l *RWLock2) EnterWrite(o Owner) {
	_ = l.EnterWriteContext(context.Background(), o)
}

// EnterWriteContext is EnterWrite that gives up when ctx is done. Readers
// held back only by this writer are released when it gives up.
func (l *RWLock2) EnterWriteContext(ctx context.Context, o Owner) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.lock(o)
	for !l.state.tryWrite(o) {
		l.waitingWriters++
		wake := l.writable.wait()
		l.mu.Unlock()
		select {
		case <-wake:
			l.lock(o)
			l.waitingWriters--
		case <-ctx.Done():
			l.mu.Lock()
			l.waitingWriters--
			if l.waitingWriters == 0 {
				l.readable.broadcast()
			}
			l.mu.Unlock()
			return ctx.Err()
		}
	}
	l.mu.Unlock()
	return nil
}

// TryEnterWrite tries to lock l for writing without blocking.
func (l *RWLock2) TryEnterWrite(o Owner) bool {
	l.lock(o)
	defer l.mu.Unlock()
	return l.state.tryWrite(o)
}

// ExitWrite undoes a single EnterWrite by o. It panics if o is not the
// writer.
func (l *RWLock2) ExitWrite(o Owner) {
	l.lock(o)
	released, ok := l.state.exitWrite(o)
	if !ok {
		l.mu.Unlock()
		panic(errExitWrite)
	}
	if released {
		l.wakeAll()
	}
	l.mu.Unlock()
}

// Stats returns a snapshot of l's holders and waiting writers.
func (l *RWLock2) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state.stats()
	s.WaitingWriters = l.waitingWriters
	return s
}

// Close marks l as destroyed. It panics if l is still held.
func (l *RWLock2) Close() {
	l.mu.Lock()
	if !l.state.free() {
		l.mu.Unlock()
		panic(errCloseHeld)
	}
	l.state.closed = true
	l.mu.Unlock()
}

// wakeAll wakes both kinds of waiters: a release can admit either.
func (l *RWLock2) wakeAll() {
	l.readable.broadcast()
	l.writable.broadcast()
}

func (l *RWLock2) lock(o Owner) {
	if o == 0 {
		panic(errZeroOwner)
	}
	l.mu.Lock()
	if l.state.closed {
		l.mu.Unlock()
		panic(errClosed)
	}
}
