package supervisor

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"llamactl/pkg/types"
)

const (
	// ringCapacity bounds the history ring; the delivery queue is unbounded
	// and cleared on every drain.
	ringCapacity = 1000
	maxLineBytes = 1024 * 1024
)

// LogStreamer captures worker output two ways: a bounded ring holding the
// most recent lines for history reads, and a queue drained once per poll.
// Both sit behind one mutex so every line lands in both or neither.
type LogStreamer struct {
	log zerolog.Logger

	mu    sync.Mutex
	ring  []types.LogEntry
	head  int
	count int
	queue []types.LogEntry

	readers *errgroup.Group
}

func NewLogStreamer(log zerolog.Logger) *LogStreamer {
	return &LogStreamer{log: log, ring: make([]types.LogEntry, ringCapacity)}
}

// Append records one line from the given stream.
func (l *LogStreamer) Append(stream, text string) {
	e := types.LogEntry{Time: time.Now(), Stream: stream, Text: text}
	l.mu.Lock()
	l.ring[(l.head+l.count)%len(l.ring)] = e
	if l.count < len(l.ring) {
		l.count++
	} else {
		l.head = (l.head + 1) % len(l.ring)
	}
	l.queue = append(l.queue, e)
	l.mu.Unlock()
}

// System records a supervisor-generated status line (start banner, early-exit
// notice). Rendered without a stream tag.
func (l *LogStreamer) System(text string) { l.Append(types.StreamSystem, text) }

// Drain returns every entry queued since the previous drain and clears the
// queue. Each entry is delivered at most once.
func (l *LogStreamer) Drain() []types.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.queue
	l.queue = nil
	return out
}

// Recent returns the ring contents, oldest first.
func (l *LogStreamer) Recent() []types.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.LogEntry, 0, l.count)
	for i := 0; i < l.count; i++ {
		out = append(out, l.ring[(l.head+i)%len(l.ring)])
	}
	return out
}

// Reset drops ring and queue contents. Called before each worker launch so
// the history shown belongs to the current worker.
func (l *LogStreamer) Reset() {
	l.mu.Lock()
	l.head, l.count = 0, 0
	l.queue = nil
	l.mu.Unlock()
}

// Attach starts one reader goroutine per pipe. Readers run until EOF, which
// arrives when the worker's write ends close.
func (l *LogStreamer) Attach(stdout, stderr io.Reader) {
	g := &errgroup.Group{}
	g.Go(func() error { return l.scan(types.StreamOut, stdout) })
	g.Go(func() error { return l.scan(types.StreamErr, stderr) })
	l.mu.Lock()
	l.readers = g
	l.mu.Unlock()
}

// Join blocks until both readers reach EOF. No-op before the first Attach.
func (l *LogStreamer) Join() {
	l.mu.Lock()
	g := l.readers
	l.mu.Unlock()
	if g == nil {
		return
	}
	if err := g.Wait(); err != nil {
		l.log.Warn().Err(err).Msg("worker log reader stopped early")
	}
}

func (l *LogStreamer) scan(stream string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		l.Append(stream, strings.ToValidUTF8(sc.Text(), "�"))
	}
	return sc.Err()
}
