package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestTicker_FiresUntilStopped(t *testing.T) {
	var n atomic.Int32

	t1 := NewTicker(10*time.Millisecond, func() {
		n.Inc()
	})

	assert.Eventually(t, func() bool {
		return n.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	t1.Stop()
	t1.Stop()

	time.Sleep(30 * time.Millisecond)
	stopped := n.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, n.Load())
}
