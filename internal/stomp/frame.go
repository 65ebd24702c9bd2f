package stomp

import (
	"strings"
)

// Frame is one protocol unit exchanged between client and server.
type Frame struct {
	Command Command
	Headers Headers
	Body    string
}

// New builds a frame with the given body and alternating header key, value pairs.
func New(command Command, body string, kv ...string) *Frame {
	return &Frame{Command: command, Headers: NewHeaders(kv...), Body: body}
}

// Clone returns a deep copy so per-recipient headers can be added safely.
func (f *Frame) Clone() *Frame {
	return &Frame{Command: f.Command, Headers: f.Headers.Clone(), Body: f.Body}
}

// String renders the frame in wire format: command, headers, a blank line, body and a NUL.
func (f *Frame) String() string {
	var b strings.Builder
	size := len(f.Command) + len(f.Body) + 3
	for _, h := range f.Headers.entries {
		size += len(h.Key) + len(h.Value) + 2
	}
	b.Grow(size)

	b.WriteString(string(f.Command))
	b.WriteByte('\n')
	for _, h := range f.Headers.entries {
		b.WriteString(h.Key)
		b.WriteByte(':')
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(f.Body)
	b.WriteByte(0)
	return b.String()
}

func (f *Frame) Bytes() []byte {
	return []byte(f.String())
}
