package scan

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStore(t *testing.T) {
	s := NewResultStore()
	assert.Empty(t, s.Snapshot())

	s.Append(ShareRecord{ShareName: "A"})
	s.Append(ShareRecord{ShareName: "B"})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "A", snap[0].ShareName)
	assert.Equal(t, "B", snap[1].ShareName)

	// Snapshots are copies.
	snap[0].ShareName = "mutated"
	assert.Equal(t, "A", s.Snapshot()[0].ShareName)

	s.Clear()
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 0, s.Len())
}

func TestResultStoreConcurrentAccess(t *testing.T) {
	s := NewResultStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Append(ShareRecord{ShareName: fmt.Sprintf("s%d-%d", i, j)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Snapshot()
				_ = s.Len()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, s.Len())
}
