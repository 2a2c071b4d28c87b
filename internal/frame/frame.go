// Package frame implements the Content-Length framing used on the wire:
//
//	Content-Length: <nbytes>\r\n
//	\r\n
//	<payload>
//
// The length is the UTF-8 byte count of the payload, written in decimal.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	HeaderPrefix     = "Content-Length: "
	HeaderTerminator = "\r\n\r\n"

	// MinHeaderBytes is the largest available byte count that is treated as
	// too small to hold a header.
	MinHeaderBytes = 20
)

var (
	ErrHeaderTooShort  = errors.New("frame: header too short")
	ErrMalformedHeader = errors.New("frame: malformed header")
	ErrHeaderTooLong   = errors.New("frame: header too long")
	ErrShortBody       = errors.New("frame: short body")
	ErrInvalidPayload  = errors.New("frame: payload is not valid UTF-8")
)

// Encode frames text for the wire.
func Encode(text string) string {
	return HeaderPrefix + strconv.Itoa(len(text)) + HeaderTerminator + text
}

// Decoder reads frames from a stream that reports how many bytes it has
// buffered.
type Decoder struct {
	// MaxHeaderBytes bounds header growth while scanning for the
	// terminator. Zero means unbounded.
	MaxHeaderBytes int
}

// Decode reads one frame from r using an unbounded Decoder.
func Decode(r io.Reader, available int) (string, error) {
	var d Decoder
	return d.Decode(r, available)
}

// Decode reads one frame from r, which reported available bytes ready.
//
// When available is at most MinHeaderBytes, exactly that many bytes are
// drained and ErrHeaderTooShort is returned. An empty payload is returned
// with a nil error when the header declares zero (or unparsable) length.
func (d *Decoder) Decode(r io.Reader, available int) (string, error) {
	if available <= MinHeaderBytes {
		if _, err := io.CopyN(io.Discard, r, int64(available)); err != nil {
			return "", fmt.Errorf("%w: drain: %v", ErrHeaderTooShort, err)
		}
		return "", ErrHeaderTooShort
	}

	header := make([]byte, len(HeaderPrefix), len(HeaderPrefix)+16)
	if _, err := io.ReadFull(r, header); err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}
	if !bytes.HasPrefix(header, []byte(HeaderPrefix)) {
		return "", fmt.Errorf("%w: %q", ErrMalformedHeader, header)
	}

	var b [1]byte
	for !bytes.HasSuffix(header, []byte(HeaderTerminator)) {
		if d.MaxHeaderBytes > 0 && len(header) >= d.MaxHeaderBytes {
			return "", fmt.Errorf("%w: %d bytes without terminator", ErrHeaderTooLong, len(header))
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", fmt.Errorf("read header: %w", err)
		}
		header = append(header, b[0])
	}

	length := parseLength(string(header[len(HeaderPrefix) : len(header)-len(HeaderTerminator)]))
	if length == 0 {
		return "", nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", fmt.Errorf("%w: want %d bytes: %v", ErrShortBody, length, err)
	}
	if !utf8.Valid(body) {
		return "", ErrInvalidPayload
	}
	return string(body), nil
}

// parseLength is permissive: anything but a non-negative decimal is 0.
func parseLength(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
