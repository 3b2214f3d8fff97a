package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedCacheEvictsOldest(t *testing.T) {
	c := NewBoundedCache[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("a", 9)
	assert.Equal(t, 2, c.Len())

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Add("c", 3)
	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}
