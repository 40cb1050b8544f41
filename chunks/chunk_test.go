package chunks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	c := NewChunk([]byte("abc"))
	h := c.Hash()
	assert.Equal(t, 52, len(h.String()))
	// hashing is stable across calls
	assert.Equal(t, h, c.Hash())
}

func TestChunkCopiesInput(t *testing.T) {
	data := []byte("abc")
	c := NewChunk(data)
	data[0] = 'x'
	assert.Equal(t, "abc", string(c.Data()))
}

func TestChunkDeterministic(t *testing.T) {
	c1 := NewChunk([]byte("same bytes"))
	c2 := NewChunk([]byte("same bytes"))
	assert.Equal(t, c1.Hash(), c2.Hash())
}
