package runner

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured output line. Seq starts at 1 and never repeats
// within a run, so a client can poll with the last Seq it saw.
type LogEntry struct {
	Seq    int       `json:"seq"`
	Stream string    `json:"stream"`
	Line   string    `json:"line"`
	Time   time.Time `json:"time"`
}

// logRing is a bounded buffer of log entries. The line cap bounds retained
// entries (oldest dropped); the byte cap bounds total captured output, after
// which a single truncation marker is written and the rest is discarded.
type logRing struct {
	mu        sync.Mutex
	entries   []LogEntry
	capLines  int
	maxBytes  int64
	bytes     int64
	truncated bool
	next      int
}

func newLogRing(capLines int, maxBytes int64) *logRing {
	return &logRing{capLines: capLines, maxBytes: maxBytes, next: 1}
}

func (r *logRing) add(stream, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.truncated {
		return
	}
	if r.maxBytes > 0 && r.bytes+int64(len(line)) > r.maxBytes {
		r.truncated = true
		r.push(stream, "[output truncated]")
		return
	}
	r.bytes += int64(len(line))
	r.push(stream, line)
}

func (r *logRing) push(stream, line string) {
	r.entries = append(r.entries, LogEntry{Seq: r.next, Stream: stream, Line: line, Time: time.Now()})
	r.next++
	if len(r.entries) > r.capLines {
		n := copy(r.entries, r.entries[len(r.entries)-r.capLines:])
		r.entries = r.entries[:n]
	}
}

// since returns a copy of every retained entry with Seq > after.
func (r *logRing) since(after int) []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []LogEntry{}
	for _, e := range r.entries {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// lastSeq is the sequence number of the newest entry ever written.
func (r *logRing) lastSeq() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next - 1
}

// maxLineBytes caps a single captured line. Longer output is split into
// chunks so one runaway print cannot grow the pending buffer without bound.
const maxLineBytes = 64 * 1024

// streamWriter splits one output stream into lines and appends them to the
// ring. exec copies each stream from its own goroutine, so a writer never
// sees concurrent Writes; the ring serializes appends across streams.
type streamWriter struct {
	ring   *logRing
	stream string
	buf    []byte
}

func newStreamWriter(ring *logRing, stream string) *streamWriter {
	return &streamWriter{ring: ring, stream: stream}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	for len(w.buf) >= maxLineBytes {
		w.emit(w.buf[:maxLineBytes])
		w.buf = w.buf[maxLineBytes:]
	}
	return len(p), nil
}

// flush appends any trailing output that did not end in a newline. Call it
// only after the stream's copier has finished.
func (w *streamWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *streamWriter) emit(line []byte) {
	w.ring.add(w.stream, strings.TrimSuffix(string(line), "\r"))
}
