package tunnel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortRegistry_ClaimRelease(t *testing.T) {
	r := NewPortRegistry()

	assert.True(t, r.Claim(51000))
	assert.True(t, r.InUse(51000))
	assert.False(t, r.Claim(51000))

	r.Release(51000)
	assert.False(t, r.InUse(51000))
	assert.True(t, r.Claim(51000))
}

func TestPortRegistry_ReleaseUnclaimedIsNoop(t *testing.T) {
	r := NewPortRegistry()
	r.Release(51000)
	assert.False(t, r.InUse(51000))
}

func TestPortRegistry_ConcurrentClaimsSinglePort(t *testing.T) {
	r := NewPortRegistry()

	const n = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Claim(51234) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
