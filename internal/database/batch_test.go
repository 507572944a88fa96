package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	chunks := Chunk(items, 100)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[2], 50)
	assert.Equal(t, 249, chunks[2][49])

	assert.Nil(t, Chunk([]int{}, 100))
	assert.Len(t, Chunk(items, 0), 1)
	assert.Len(t, Chunk(items[:100], 100), 1)
}
