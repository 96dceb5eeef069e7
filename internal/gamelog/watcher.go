package gamelog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

const (
	pollInterval       = 500 * time.Millisecond
	defaultReopenDelay = 10 * time.Second
	maxLineLength      = 64 * 1024
)

// Watcher follows an append-only log file from its current end, feeding
// each complete new line to the handler. Rotation, truncation and deletion
// all tear the current stream down; the watcher waits a fixed delay and
// re-opens from the new end, indefinitely. Historical content is never
// replayed.
type Watcher struct {
	path    string
	handler func(line string)

	reopenDelay time.Duration
}

func NewWatcher(path string, handler func(line string)) *Watcher {
	return &Watcher{path: path, handler: handler, reopenDelay: defaultReopenDelay}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if err := w.follow(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("gamelog: watch %s: %v (re-opening in %s)", w.path, err, w.reopenDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.reopenDelay):
		}
	}
}

// follow tails the file until ctx cancellation or a stream error.
func (w *Watcher) follow(ctx context.Context) error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	var partial strings.Builder
	buf := make([]byte, 16*1024)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			offset += int64(n)
			w.consume(buf[:n], &partial)
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read: %w", err)
		}

		// At EOF: detect rotation or truncation before sleeping.
		info, statErr := os.Stat(w.path)
		if statErr != nil {
			return fmt.Errorf("stat: %w", statErr)
		}
		if info.Size() < offset {
			return errors.New("file truncated or rotated")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// consume splits a read chunk into lines, carrying an incomplete trailing
// line over to the next read.
func (w *Watcher) consume(chunk []byte, partial *strings.Builder) {
	rest := string(chunk)
	for {
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			if partial.Len()+len(rest) <= maxLineLength {
				partial.WriteString(rest)
			}
			return
		}
		line := partial.String() + rest[:idx]
		partial.Reset()
		rest = rest[idx+1:]
		if line = strings.TrimRight(line, "\r"); line != "" {
			w.handler(line)
		}
	}
}
