// Package redirect swaps a process output slot such as os.Stderr for a pipe
// and forwards the pipe's lines to another writer.
package redirect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"pathscrub/internal/logging"

	"go.uber.org/zap"
)

// Redirect is one swapped output slot.
type Redirect struct {
	slot    **os.File
	orig    *os.File
	pr, pw  *os.File
	done    chan error
	stopped bool
}

// Start replaces *slot with the write end of a pipe. Lines written to it are
// forwarded to the writer returned by wrap, which receives the original file.
func Start(slot **os.File, wrap func(orig *os.File) io.Writer) (*Redirect, error) {
	if slot == nil || *slot == nil {
		return nil, errors.New("redirect: nil output slot")
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}

	r := &Redirect{
		slot: slot,
		orig: *slot,
		pr:   pr,
		pw:   pw,
		done: make(chan error, 1),
	}
	dst := wrap(r.orig)
	go func() {
		r.done <- Pump(pr, dst)
	}()
	*slot = pw

	logging.Get(logging.CategoryRedirect).Debug("output slot redirected", zap.String("file", r.orig.Name()))
	return r, nil
}

// Original returns the file that was in the slot before Start.
func (r *Redirect) Original() *os.File {
	return r.orig
}

// Stop puts the original file back, closes the pipe and waits until every
// pending line has been forwarded. Calling Stop again does nothing.
func (r *Redirect) Stop() error {
	if r == nil || r.stopped {
		return nil
	}
	r.stopped = true
	*r.slot = r.orig

	closeErr := r.pw.Close()
	pumpErr := <-r.done
	_ = r.pr.Close()

	if err := errors.Join(closeErr, pumpErr); err != nil {
		return fmt.Errorf("redirect stop: %w", err)
	}
	logging.Get(logging.CategoryRedirect).Debug("output slot restored", zap.String("file", r.orig.Name()))
	return nil
}

// Stopped reports whether Stop has been called.
func (r *Redirect) Stopped() bool {
	return r == nil || r.stopped
}

// Pump copies src to dst one line at a time until src reaches EOF. A path
// never straddles two writes to dst unless it straddles a newline.
// When dst fails the rest of src is drained so writers to src never block.
func Pump(src io.Reader, dst io.Writer) error {
	br := bufio.NewReader(src)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if _, werr := io.WriteString(dst, line); werr != nil {
				_, _ = io.Copy(io.Discard, br)
				return fmt.Errorf("pump write failed: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("pump read failed: %w", err)
		}
	}
}
