package stomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadersKeepOrder(t *testing.T) {
	h := NewHeaders("b", "1", "a", "2", "c", "3")
	h.Set("a", "20")
	h.Del("b")
	h.Set("d", "4")

	assert.Equal(t, []Header{{"a", "20"}, {"c", "3"}, {"d", "4"}}, h.All())
	assert.Equal(t, 3, h.Len())

	v, ok := h.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "20", v)
	_, ok = h.Get("b")
	assert.False(t, ok)
	assert.Equal(t, "", h.Value("missing"))
}

func TestCloneDoesNotShareStorage(t *testing.T) {
	f := Message("/topic/x", "hello")
	c := f.Clone()
	c.Headers.Set(HeaderSubscription, "s1")
	c.Headers.Set(HeaderDestination, "/other")

	assert.Equal(t, "/topic/x", f.Headers.Value(HeaderDestination))
	_, ok := f.Headers.Get(HeaderSubscription)
	assert.False(t, ok)
}
