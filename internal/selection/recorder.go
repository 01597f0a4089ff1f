package selection

import "sync"

// Recorded is an intent with its position in the stream.
type Recorded struct {
	Seq uint64 `json:"seq"`
	Intent
}

// Recorder is a Sink that keeps the most recent intents in a bounded buffer
// and forwards each one to next. It is safe for concurrent use.
type Recorder struct {
	next  Sink
	limit int

	mu  sync.Mutex
	seq uint64
	buf []Recorded
}

// NewRecorder keeps up to limit intents (at least 1). A nil next drops them
// after recording.
func NewRecorder(limit int, next Sink) *Recorder {
	if next == nil {
		next = discard{}
	}
	return &Recorder{next: next, limit: max(limit, 1)}
}

// Emit records in and forwards it.
func (r *Recorder) Emit(in Intent) {
	r.mu.Lock()
	r.seq++
	r.buf = append(r.buf, Recorded{Seq: r.seq, Intent: in})
	if over := len(r.buf) - r.limit; over > 0 {
		r.buf = append(r.buf[:0], r.buf[over:]...)
	}
	r.mu.Unlock()

	r.next.Emit(in)
}

// Seq is the sequence number of the last recorded intent, 0 before any.
func (r *Recorder) Seq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Since returns the buffered intents recorded after seq, oldest first.
func (r *Recorder) Since(seq uint64) []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Recorded{}
	for _, rec := range r.buf {
		if rec.Seq > seq {
			out = append(out, rec)
		}
	}
	return out
}

// Recent returns every buffered intent, oldest first.
func (r *Recorder) Recent() []Recorded { return r.Since(0) }
