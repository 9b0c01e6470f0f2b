// ABOUTME: Tests for the action-ID dedupe cache.
// ABOUTME: Validates TTL expiration, capacity eviction, and concurrent marking.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_CheckNotSeen(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Check("action-never-applied"))
}

func TestCache_MarkThenCheck(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Mark("action-1")
	assert.True(t, cache.Check("action-1"))
}

func TestCache_Expiry(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("expiring-action")
	assert.True(t, cache.Check("expiring-action"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.Check("expiring-action"))
}

func TestCache_CheckAndMark(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	// First arrival applies, the retry is a duplicate.
	assert.False(t, cache.CheckAndMark("action-1"))
	assert.True(t, cache.CheckAndMark("action-1"))
}

func TestCache_CheckAndMark_ExpiredIsNew(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("action-1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.CheckAndMark("action-1"))
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("a")
	cache.Mark("b")
	cache.Mark("c")
	cache.Mark("d")

	assert.False(t, cache.Check("a"))
	assert.True(t, cache.Check("b"))
	assert.True(t, cache.Check("c"))
	assert.True(t, cache.Check("d"))
}

func TestCache_MarkRefreshesOrder(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("a")
	cache.Mark("b")
	cache.Mark("c")
	cache.Mark("a") // moves to back
	cache.Mark("d") // evicts b

	assert.True(t, cache.Check("a"))
	assert.False(t, cache.Check("b"))
	assert.True(t, cache.Check("c"))
	assert.True(t, cache.Check("d"))
}

func TestCache_ConcurrentCheckAndMark(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	const goroutines = 20
	var wg sync.WaitGroup
	duplicates := make([]int, goroutines)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if cache.CheckAndMark(fmt.Sprintf("action-%d", i)) {
					duplicates[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	// Each of the 50 IDs is applied exactly once across all goroutines.
	total := 0
	for _, d := range duplicates {
		total += d
	}
	assert.Equal(t, goroutines*50-50, total)
}

func TestCache_CloseIdempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	cache.Close()
}
