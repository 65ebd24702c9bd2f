package stomp

import (
	"bufio"
	"errors"
	"io"
)

// Reader splits a byte stream into NUL terminated frame texts.
type Reader struct {
	r       *bufio.Reader
	maxSize int
}

// NewReader returns a Reader limited to maxSize bytes per frame. A maxSize of zero means no limit.
func NewReader(r io.Reader, maxSize int) *Reader {
	return &Reader{r: bufio.NewReader(r), maxSize: maxSize}
}

// ReadFrame returns the next frame text without its NUL terminator. Line feeds
// between frames are heart-beats and are skipped. io.EOF is returned only at a
// frame boundary; a stream that ends mid-frame yields io.ErrUnexpectedEOF.
func (r *Reader) ReadFrame() (string, error) {
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b != '\n' && b != '\r' {
			_ = r.r.UnreadByte()
			break
		}
	}

	var buf []byte
	for {
		chunk, err := r.r.ReadSlice(0)
		if r.maxSize > 0 && len(buf)+len(chunk) > r.maxSize+1 {
			return "", &ParseError{Reason: ErrFrameTooLarge}
		}
		buf = append(buf, chunk...)
		switch {
		case err == nil:
			return string(buf[:len(buf)-1]), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return "", io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}
