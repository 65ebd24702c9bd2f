package stomp

import (
	"strings"
)

// Parse decodes the text of one frame. A trailing NUL is optional.
//
// The header section ends at the first blank line. Each header line must
// contain exactly one colon and a non-empty key; a repeated key keeps the
// last value. A body that contains another blank-line separator is rejected.
func Parse(text string) (*Frame, error) {
	text = strings.TrimSuffix(text, "\x00")
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: ErrEmptyFrame}
	}

	head, body, _ := strings.Cut(text, "\n\n")
	if strings.Contains(strings.TrimRight(body, "\n"), "\n\n") {
		return nil, &ParseError{Reason: ErrExtraSection}
	}

	lines := strings.Split(head, "\n")
	command := strings.TrimSpace(lines[0])
	if command == "" {
		return nil, &ParseError{Reason: ErrMissingCommand}
	}

	frame := &Frame{Command: Command(command), Body: body}
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.Count(line, ":") != 1 {
			return nil, &ParseError{Reason: ErrMalformedHeader, Line: line}
		}
		key, value, _ := strings.Cut(line, ":")
		if key == "" {
			return nil, &ParseError{Reason: ErrMalformedHeader, Line: line}
		}
		frame.Headers.Set(key, value)
	}
	return frame, nil
}
