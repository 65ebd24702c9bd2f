package stomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		command Command
		headers map[string]string
		body    string
	}{
		{
			name:    "connect",
			text:    "CONNECT\naccept-version:1.2\nhost:stomp.cs.bgu.ac.il\nlogin:alice\npasscode:secret\n\n\x00",
			command: CommandConnect,
			headers: map[string]string{"accept-version": "1.2", "host": "stomp.cs.bgu.ac.il", "login": "alice", "passcode": "secret"},
		},
		{
			name:    "send with body",
			text:    "SEND\ndestination:/topic/x\n\nhello\x00",
			command: CommandSend,
			headers: map[string]string{"destination": "/topic/x"},
			body:    "hello",
		},
		{
			name:    "missing separator means empty body",
			text:    "DISCONNECT\nreceipt:77",
			command: CommandDisconnect,
			headers: map[string]string{"receipt": "77"},
		},
		{
			name:    "no trailing nul",
			text:    "SUBSCRIBE\ndestination:/a\nid:1\n\n",
			command: CommandSubscribe,
			headers: map[string]string{"destination": "/a", "id": "1"},
		},
		{
			name:    "last header occurrence wins",
			text:    "SEND\ndestination:/a\ndestination:/b\n\n",
			command: CommandSend,
			headers: map[string]string{"destination": "/b"},
		},
		{
			name:    "empty value and carriage returns",
			text:    "CONNECT\r\nlogin:\r\n\nbody",
			command: CommandConnect,
			headers: map[string]string{"login": ""},
			body:    "body",
		},
		{
			name:    "body keeps single newlines",
			text:    "SEND\ndestination:/a\n\nline one\nline two\n\x00",
			command: CommandSend,
			headers: map[string]string{"destination": "/a"},
			body:    "line one\nline two\n",
		},
		{
			name:    "trailing blank lines in body are allowed",
			text:    "SEND\ndestination:/a\n\nhi\n\n\x00",
			command: CommandSend,
			headers: map[string]string{"destination": "/a"},
			body:    "hi\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.command, frame.Command)
			assert.Equal(t, tt.headers, frame.Headers.Map())
			assert.Equal(t, tt.body, frame.Body)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason error
	}{
		{"empty", "", ErrEmptyFrame},
		{"only nul", "\x00", ErrEmptyFrame},
		{"whitespace", " \n \x00", ErrEmptyFrame},
		{"missing command", "\nlogin:a\n\n", ErrMissingCommand},
		{"header without colon", "SEND\ndestination\n\n", ErrMalformedHeader},
		{"header with two colons", "SEND\ndestination:/a:b\n\n", ErrMalformedHeader},
		{"empty key", "SEND\n:value\n\n", ErrMalformedHeader},
		{"second separator", "SEND\ndestination:/a\n\nfirst\n\nsecond\x00", ErrExtraSection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Parse(tt.text)
			assert.Nil(t, frame)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFrame)
			assert.ErrorIs(t, err, tt.reason)

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseErrorMessageQuotesLine(t *testing.T) {
	_, err := Parse("SEND\nbad header\n\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad header"`)
}

func TestSerializeParse(t *testing.T) {
	frames := []*Frame{
		New(CommandConnected, "", HeaderVersion, "1.2"),
		New(CommandMessage, "hello", HeaderDestination, "/topic/x", HeaderMessageID, "1", HeaderSubscription, "s1"),
		New(CommandReceipt, "", HeaderReceiptID, "r1"),
		New(CommandSend, "multi\nline\n", HeaderDestination, "/a", HeaderContentType, "text/plain"),
		New(CommandDisconnect, ""),
	}
	for _, f := range frames {
		t.Run(string(f.Command), func(t *testing.T) {
			parsed, err := Parse(f.String())
			require.NoError(t, err)
			assert.Equal(t, f, parsed)
		})
	}
}

func TestFrameString(t *testing.T) {
	f := New(CommandMessage, "hello", HeaderDestination, "/topic/x", HeaderSubscription, "s1")
	assert.Equal(t, "MESSAGE\ndestination:/topic/x\nsubscription:s1\n\nhello\x00", f.String())
	assert.Equal(t, []byte(f.String()), f.Bytes())
}
