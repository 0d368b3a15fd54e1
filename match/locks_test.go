package match

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSet(t *testing.T) {
	s := newLockSet()

	var wg sync.WaitGroup
	counter := map[int64]*int{1: new(int), 2: new(int)}
	for i := 0; i < 50; i++ {
		for _, id := range []int64{1, 2} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := s.lock(id)
				defer unlock()
				*counter[id]++
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 50, *counter[1])
	assert.Equal(t, 50, *counter[2])
	assert.Equal(t, 0, s.len(), "idle locks are released")
}
