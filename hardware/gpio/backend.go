package gpio

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Attr names one of the per-pin attribute files.
type Attr string

const (
	AttrValue     Attr = "value"
	AttrDirection Attr = "direction"
	AttrEdge      Attr = "edge"
	AttrActiveLow Attr = "active_low"
)

// Handle is an open backing handle for one pin attribute.
type Handle interface {
	io.ReadWriteSeeker
	io.Closer
}

// Waiter blocks until an edge is signalled on a value handle. Close may be
// called concurrently with Wait and makes it return ErrWaiterClosed.
type Waiter interface {
	Wait() error
	Close() error
}

// ErrWaiterClosed is returned by Wait once the waiter has been closed.
var ErrWaiterClosed = errors.New("waiter closed")

// Backend exports GPIO lines and opens their attribute handles.
type Backend interface {
	Export(line int) error
	Open(line int, attr Attr) (Handle, error)
	Watch(value Handle) (Waiter, error)
}

// writeAttr rewinds h and writes v to it. Attribute files are rewritten whole.
func writeAttr(h Handle, v string) error {
	if _, err := h.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("unable to seek: %w", err)
	}

	if _, err := io.WriteString(h, v); err != nil {
		return fmt.Errorf("unable to write %q: %w", v, err)
	}

	return nil
}

func readAttr(h Handle) (string, error) {
	if _, err := h.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("unable to seek: %w", err)
	}

	buf := make([]byte, 16)
	n, err := h.Read(buf)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		return "", fmt.Errorf("unable to read: %w", err)
	}

	return strings.TrimSpace(string(buf[:n])), nil
}
