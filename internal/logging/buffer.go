package logging

import (
	"bytes"
	"strings"
	"sync"
)

const defaultBufferLines = 2000

// Buffer keeps the most recent log lines in memory. It is an io.Writer so
// it can sit behind the slog handler next to the real output.
type Buffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
	dropped uint64
}

func NewBuffer(maxLines int) *Buffer {
	if maxLines <= 0 {
		maxLines = defaultBufferLines
	}
	return &Buffer{max: maxLines}
}

// Write implements io.Writer. Bytes after the last newline are held until
// the line is completed by a later write.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := append(b.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.appendLineLocked(string(data[:i]))
		data = data[i+1:]
	}
	b.partial = append([]byte(nil), data...)
	return len(p), nil
}

func (b *Buffer) appendLineLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0:0], b.lines[over:]...)
		b.dropped += uint64(over)
	}
}

// Tail returns up to n of the newest complete lines (200 when n <= 0) and
// how many lines have been evicted so far.
func (b *Buffer) Tail(n int) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		n = 200
	}
	if n > len(b.lines) {
		n = len(b.lines)
	}
	return append([]string(nil), b.lines[len(b.lines)-n:]...), b.dropped
}
