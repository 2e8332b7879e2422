package server

import (
	"strings"
	"sync"
)

// OutputLog is a thread-safe circular buffer holding the last lines a server printed
type OutputLog struct {
	lines []string
	size  int
	head  int
	count int
	mu    sync.RWMutex
}

// NewOutputLog creates a log retaining at most size lines
func NewOutputLog(size int) *OutputLog {
	if size < 1 {
		size = 1
	}
	return &OutputLog{
		lines: make([]string, size),
		size:  size,
	}
}

// Append stores a line, evicting the oldest when full
func (b *OutputLog) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tail := (b.head + b.count) % b.size
	b.lines[tail] = line
	if b.count < b.size {
		b.count++
		return
	}
	b.head = (b.head + 1) % b.size
}

// Lines returns the retained lines, oldest first
func (b *OutputLog) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		result[i] = b.lines[(b.head+i)%b.size]
	}
	return result
}

// Tail returns up to n of the most recent lines
func (b *OutputLog) Tail(n int) []string {
	lines := b.Lines()
	if n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// Len returns the number of retained lines
func (b *OutputLog) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// String joins the retained lines
func (b *OutputLog) String() string {
	return strings.Join(b.Lines(), "\n")
}
