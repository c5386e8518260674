package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter_StartsAtZero(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, 0, c.Read())
	assert.Equal(t, 0, c.Peak())
}

func TestCounter_IncrementDecrement(t *testing.T) {
	c := NewCounter()

	c.Increment()
	c.Increment()
	c.Increment()
	assert.Equal(t, 3, c.Read())

	c.Decrement()
	assert.Equal(t, 2, c.Read())
	assert.Equal(t, 3, c.Peak(), "peak survives decrements")

	c.Increment()
	assert.Equal(t, 3, c.Peak())
}

func TestCounter_ConcurrentUpdates(t *testing.T) {
	c := NewCounter()
	workers := 50
	iterations := 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				c.Increment()
				c.Decrement()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, c.Read())
	assert.GreaterOrEqual(t, c.Peak(), 1)
	assert.LessOrEqual(t, c.Peak(), workers)
}
