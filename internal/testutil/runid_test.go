package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunIDGenerator_AlwaysSameID(t *testing.T) {
	gen := NewFixedRunIDGenerator("run-a")
	for range 5 {
		assert.Equal(t, "run-a", gen.Generate())
	}
}

func TestFixedRunIDGenerator_DefaultID(t *testing.T) {
	assert.Equal(t, DefaultRunID, NewFixedRunIDGenerator("").Generate())
}

func TestFixedRunIDGenerator_Concurrent(t *testing.T) {
	gen := NewFixedRunIDGenerator("run-b")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "run-b", gen.Generate())
		}()
	}
	wg.Wait()
}
