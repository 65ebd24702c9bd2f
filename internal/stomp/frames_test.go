package stomp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnected(t *testing.T) {
	f := Connected("1.2", "abc", "")
	assert.Equal(t, CommandConnected, f.Command)
	assert.Equal(t, []Header{{HeaderVersion, "1.2"}, {HeaderSession, "abc"}, {HeaderHeartBeat, "0,0"}}, f.Headers.All())
}

func TestErrorWithoutFrame(t *testing.T) {
	f := Error("malformed frame received", nil)
	assert.Equal(t, CommandError, f.Command)
	assert.Equal(t, "malformed frame received", f.Headers.Value(HeaderMessage))
	_, ok := f.Headers.Get(HeaderReceiptID)
	assert.False(t, ok)
	assert.NotEmpty(t, f.Body)
}

func TestErrorEchoesOffendingFrame(t *testing.T) {
	offending := New(CommandSend, "hello", HeaderDestination, "/topic/x", HeaderReceipt, "9")
	f := Error("not subscribed", offending)

	assert.Equal(t, "9", f.Headers.Value(HeaderReceiptID))
	assert.True(t, strings.HasPrefix(f.Body, "The message:\n-----\nSEND\ndestination:/topic/x\nreceipt:9\n-----\n"))

	parsed, err := Parse(f.String())
	require.NoError(t, err, "ERROR frames must survive our own parser")
	assert.Equal(t, f, parsed)
}
