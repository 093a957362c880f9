package anon

import (
	"bytes"
	"io"
	"sync"
)

// Writer anonymizes each write before forwarding it to the real stream and
// keeps a copy of the anonymized text.
type Writer struct {
	mu      sync.Mutex
	dst     io.Writer
	anon    *Anonymizer
	buf     bytes.Buffer
	capture bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// DiscardCapture stops the Writer from keeping written text. Used for
// long-running streams where only forwarding matters.
func DiscardCapture() WriterOption {
	return func(w *Writer) { w.capture = false }
}

// NewWriter wraps dst. A nil anonymizer forwards text unchanged.
func NewWriter(dst io.Writer, a *Anonymizer, opts ...WriterOption) *Writer {
	w := &Writer{dst: dst, anon: a, capture: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements io.Writer. The returned count is len(p) on success even
// though the forwarded text may differ in length.
func (w *Writer) Write(p []byte) (int, error) {
	out := w.anon.Rewrite(string(p))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.capture {
		w.buf.WriteString(out)
	}
	if _, err := io.WriteString(w.dst, out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush syncs the destination when it supports it.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch d := w.dst.(type) {
	case interface{ Flush() error }:
		return d.Flush()
	case interface{ Sync() error }:
		// Sync on a terminal or pipe reports EINVAL; nothing is lost.
		_ = d.Sync()
	}
	return nil
}

// String returns everything written so far, anonymized.
func (w *Writer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// Reset clears the captured text.
func (w *Writer) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Reset()
}

// Anonymizer returns the anonymizer applied by the Writer.
func (w *Writer) Anonymizer() *Anonymizer {
	return w.anon
}
