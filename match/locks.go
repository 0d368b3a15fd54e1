package match

import "sync"

// lockSet hands out one mutex per match id. Entries are dropped once nobody
// holds or waits on them.
type lockSet struct {
	mu    sync.Mutex
	locks map[int64]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: map[int64]*refLock{}}
}

// lock blocks until id is free and returns the matching unlock.
func (s *lockSet) lock(id int64) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &refLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *lockSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
