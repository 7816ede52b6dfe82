package rrwlock

const (
	errZeroOwner = "rrwlock: zero Owner"
	errClosed    = "rrwlock: use of closed lock"
	errCloseHeld = "rrwlock: Close of held lock"
	errExitRead  = "rrwlock: ExitRead without matching EnterRead"
	errExitWrite = "rrwlock: ExitWrite by non-writer"
)

// lockState is the recursion ledger shared by RWLock and RWLock2. It is only
// touched with the owning lock's guard held.
type lockState struct {
	readers     map[Owner]int // entries are removed at zero, never kept
	writer      Owner
	writerDepth int
	closed      bool
}

// tryRead admits o as a reader. A reentrant reader and the active writer are
// always admitted; anybody else only when there is no writer and admitNew is
// set.
func (s *lockState) tryRead(o Owner, admitNew bool) bool {
	if n, ok := s.readers[o]; ok {
		s.readers[o] = n + 1
		return true
	}
	if s.writer == o || (s.writer == 0 && admitNew) {
		if s.readers == nil {
			s.readers = make(map[Owner]int, 16)
		}
		s.readers[o] = 1
		return true
	}
	return false
}

// exitRead drops one read hold of o. released reports that o's entry is
// gone, ok that o held one at all.
func (s *lockState) exitRead(o Owner) (released, ok bool) {
	n, ok := s.readers[o]
	if !ok {
		return false, false
	}
	if n == 1 {
		delete(s.readers, o)
		return true, true
	}
	s.readers[o] = n - 1
	return false, true
}

// tryWrite admits o as the writer if the lock is free, o already is the
// writer, or o is the only reader (upgrade).
func (s *lockState) tryWrite(o Owner) bool {
	_, reading := s.readers[o]
	if (len(s.readers) == 0 && s.writer == 0) ||
		s.writer == o ||
		(len(s.readers) == 1 && reading) {
		s.writer = o
		s.writerDepth++
		return true
	}
	return false
}

// exitWrite drops one write hold of o. An upgraded read entry is left alone.
func (s *lockState) exitWrite(o Owner) (released, ok bool) {
	if s.writer != o || s.writerDepth == 0 {
		return false, false
	}
	s.writerDepth--
	if s.writerDepth == 0 {
		s.writer = 0
		return true, true
	}
	return false, true
}

func (s *lockState) free() bool {
	return len(s.readers) == 0 && s.writer == 0
}

func (s *lockState) stats() Stats {
	readers := make(map[Owner]int, len(s.readers))
	for o, n := range s.readers {
		readers[o] = n
	}
	return Stats{
		Readers:     readers,
		Writer:      s.writer,
		WriterDepth: s.writerDepth,
	}
}
