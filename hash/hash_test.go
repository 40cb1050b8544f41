package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoundTrip(t *testing.T) {
	h := Of([]byte("abc"))
	s := h.String()
	assert.Len(t, s, StringLen)

	h2 := Parse(s)
	assert.Equal(t, h, h2)
}

func TestParsePanicsOnGarbage(t *testing.T) {
	assertParseError := func(s string) {
		assert.Panics(t, func() { Parse(s) })
	}

	assertParseError("foo")
	assertParseError("00000000000000000000000000000000") // wrong length
	assertParseError("000000000000000000000000000000000000000000000000ww")
}

func TestMaybeParse(t *testing.T) {
	h := Of([]byte("abc"))
	s := h.String()

	got, ok := MaybeParse(s)
	assert.True(t, ok)
	assert.Equal(t, h, got)

	_, ok = MaybeParse("not-a-hash")
	assert.False(t, ok)
}

func TestEquals(t *testing.T) {
	a := Of([]byte("abc"))
	a2 := Parse(a.String())
	b := Of([]byte("xyz"))

	assert.Equal(t, a, a2)
	assert.NotEqual(t, a, b)
}

func TestIsEmpty(t *testing.T) {
	var z Hash
	assert.True(t, z.IsEmpty())
	assert.False(t, Of([]byte("abc")).IsEmpty())
}

func TestLessAndCompare(t *testing.T) {
	a := Hash{0: 1}
	b := Hash{0: 2}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))

	assert.True(t, a.Compare(b) < 0)
	assert.True(t, b.Compare(a) > 0)
	assert.Equal(t, 0, a.Compare(a))
}

func TestOfDeterministic(t *testing.T) {
	a := Of([]byte("hello world"))
	b := Of([]byte("hello world"))
	assert.Equal(t, a, b)

	c := Of([]byte("hello worlD"))
	assert.NotEqual(t, a, c)
}
