// Package bytestream implements the unbounded FIFO byte queue that
// backs every buffer in the playback pipeline: raw network bytes,
// demultiplexed audio, metadata accumulation, and decoder input.
package bytestream

import "io"

// Stream is an ordered byte queue. All operations are total: reading
// more than is buffered simply yields fewer bytes, and nothing ever
// blocks. A Stream has no locking of its own; callers serialize access.
type Stream struct {
	buf []byte
	off int
}

// New returns an empty stream.
func New() *Stream {
	return &Stream{}
}

// Len is the exact count of unread bytes.
func (s *Stream) Len() int {
	return len(s.buf) - s.off
}

// Write appends p. It always succeeds and implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	s.compact()
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (s *Stream) WriteByte(b byte) error {
	s.buf = append(s.buf, b)
	return nil
}

// ReadN removes and returns up to n bytes. The returned slice is a
// copy and safe to retain.
func (s *Stream) ReadN(n int) []byte {
	out := s.Peek(n)
	s.off += len(out)
	return out
}

// Peek returns up to n bytes without removing them.
func (s *Stream) Peek(n int) []byte {
	if n <= 0 {
		return nil
	}
	if avail := s.Len(); n > avail {
		n = avail
	}
	out := make([]byte, n)
	copy(out, s.buf[s.off:s.off+n])
	return out
}

// Discard removes up to n bytes and returns how many were removed.
func (s *Stream) Discard(n int) int {
	if n <= 0 {
		return 0
	}
	if avail := s.Len(); n > avail {
		n = avail
	}
	s.off += n
	return n
}

// Consume transfers bytes from other into s in FIFO order, capped at
// max when max >= 0 and at other.Len() otherwise. It returns the
// number of bytes moved. Consuming from itself is a no-op.
func (s *Stream) Consume(other *Stream, max int) int {
	if other == nil || other == s {
		return 0
	}
	n := other.Len()
	if max >= 0 && max < n {
		n = max
	}
	if n == 0 {
		return 0
	}
	s.compact()
	s.buf = append(s.buf, other.buf[other.off:other.off+n]...)
	other.off += n
	return n
}

// ReadByte pops one byte if available.
func (s *Stream) ReadByte() (byte, bool) {
	if s.Len() == 0 {
		return 0, false
	}
	b := s.buf[s.off]
	s.off++
	return b, true
}

// Read implements io.Reader so a Stream can feed io.Reader-based
// consumers. An empty stream reads as io.EOF; callers that need
// "no data yet" semantics must gate on Len before reading.
func (s *Stream) Read(p []byte) (int, error) {
	if s.Len() == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.off:])
	s.off += n
	return n, nil
}

// Reset discards all buffered bytes.
func (s *Stream) Reset() {
	s.buf = s.buf[:0]
	s.off = 0
}

// compact reclaims the consumed prefix once it dominates the backing
// array, keeping appends amortized O(1) without unbounded growth.
func (s *Stream) compact() {
	if s.off == 0 {
		return
	}
	if s.off == len(s.buf) {
		s.buf = s.buf[:0]
		s.off = 0
		return
	}
	if s.off > 4096 && s.off > len(s.buf)/2 {
		n := copy(s.buf, s.buf[s.off:])
		s.buf = s.buf[:n]
		s.off = 0
	}
}
