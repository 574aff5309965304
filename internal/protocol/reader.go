package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Frame is the client's view of one response. When Failed is set the server
// answered with the single line in Message and no body follows.
type Frame struct {
	ContentLength int64
	Filename      string
	Failed        bool
	Message       string
}

// Reader consumes responses on the client side of a connection.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps the client side of a connection.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadFrame reads the first line of a response and, for a frame, the
// filename line. The body is left unread; see CopyBody.
func (r *Reader) ReadFrame() (*Frame, error) {
	first, err := r.readLine()
	if err != nil {
		return nil, err
	}

	length, perr := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if perr != nil || length < 0 {
		return &Frame{Failed: true, Message: first}, nil
	}

	filename, err := r.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read filename line: %w", err)
	}

	return &Frame{ContentLength: length, Filename: filename}, nil
}

// CopyBody copies the frame body to dst in ChunkSize reads. The server going
// away mid-body ends the copy early without an error.
func (r *Reader) CopyBody(dst io.Writer, f *Frame) (int64, error) {
	if f.Failed {
		return 0, nil
	}

	buf := make([]byte, ChunkSize)
	remaining := f.ContentLength
	var copied int64

	for remaining > 0 {
		want := int64(len(buf))
		if remaining < want {
			want = remaining
		}

		n, err := r.br.Read(buf[:want])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return copied, werr
			}
			copied += int64(n)
			remaining -= int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return copied, err
		}
	}

	return copied, nil
}

// readLine returns one line without its terminator. A final line without a
// newline is returned as-is; io.EOF is returned only when nothing was read.
func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
