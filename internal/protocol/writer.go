package protocol

import (
	"bufio"
	"errors"
	"io"
	"strconv"

	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
)

// ChunkSize bounds every body read on both sides of the relay.
const ChunkSize = 1024

// Writer writes frames and error lines to a client. Every error it returns
// is a ClientIO error except downstream read failures from RelayBody.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps the client side of a connection.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteError sends msg as a single line and flushes.
func (w *Writer) WriteError(msg string) error {
	if _, err := w.bw.WriteString(msg + "\n"); err != nil {
		return relayerrors.New(relayerrors.ClientIO, "", err)
	}
	return w.Flush()
}

// WriteHeader sends the length and filename lines that open a frame.
func (w *Writer) WriteHeader(contentLength int64, filename string) error {
	if _, err := w.bw.WriteString(strconv.FormatInt(contentLength, 10) + "\n" + filename + "\n"); err != nil {
		return relayerrors.New(relayerrors.ClientIO, "", err)
	}
	return nil
}

// Write buffers raw bytes for the client.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.bw.Write(p)
	if err != nil {
		return n, relayerrors.New(relayerrors.ClientIO, "", err)
	}
	return n, nil
}

// Flush pushes buffered bytes to the client.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return relayerrors.New(relayerrors.ClientIO, "", err)
	}
	return nil
}

// RelayBody copies up to n bytes from src to the client in ChunkSize pieces,
// flushing after each one. A negative n copies until src is exhausted.
// Hitting io.EOF early is not an error. Other read failures come back as
// DownstreamIO so the caller can tell them apart from ClientIO.
func (w *Writer) RelayBody(src io.Reader, n int64) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64

	for n < 0 || written < n {
		want := int64(len(buf))
		if n >= 0 && n-written < want {
			want = n - written
		}

		read, err := src.Read(buf[:want])
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return written, werr
			}
			if ferr := w.Flush(); ferr != nil {
				return written, ferr
			}
			written += int64(read)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, relayerrors.New(relayerrors.DownstreamIO, "", err)
		}
	}

	return written, nil
}
