package rrwlock

/* Broadcast event implemented with channels */

// event is a wait channel that wakes every parked goroutine at once.
// All methods assume the owning lock's guard is held.
type event struct {
	c chan struct{}
}

// wait returns the channel to park on. It must be obtained before the guard
// is released so that a broadcast issued after the release is not missed.
func (e *event) wait() <-chan struct{} {
	if e.c == nil {
		e.c = make(chan struct{})
	}
	return e.c
}

// broadcast wakes everyone parked on the current channel.
func (e *event) broadcast() {
	if e.c != nil {
		close(e.c)
		e.c = nil
	}
}
