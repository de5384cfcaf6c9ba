package icy

import (
	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
)

// Splitter demultiplexes an ICY stream: every interval bytes of audio
// are followed by one length byte L and, when L > 0, L*16 bytes of
// metadata. The splitter is resumable at any byte boundary, including
// in the middle of a metadata block or before the length byte itself,
// because network reads can split the stream anywhere.
type Splitter struct {
	interval int
	dataLeft int
	metaLeft int
	inMeta   bool

	meta  *bytestream.Stream
	audio *bytestream.Stream

	// OnMetadata is called with the parsed values of each completed
	// metadata block, including empty ones.
	OnMetadata func(values map[string]string)
}

// NewSplitter returns a splitter for the given icy-metaint interval.
// An interval of 0 means the stream carries no in-band metadata and
// Process degenerates to a pass-through.
func NewSplitter(interval int) *Splitter {
	if interval < 0 {
		interval = 0
	}
	return &Splitter{
		interval: interval,
		dataLeft: interval,
		meta:     bytestream.New(),
		audio:    bytestream.New(),
	}
}

// Audio is the clean, decoder-ready audio stream.
func (s *Splitter) Audio() *bytestream.Stream {
	return s.audio
}

// Process consumes whatever is available from raw. It stops when raw is
// exhausted, leaving the state machine ready to resume on the next call.
func (s *Splitter) Process(raw *bytestream.Stream) {
	if s.interval == 0 {
		s.audio.Consume(raw, -1)
		return
	}

	for raw.Len() > 0 {
		if s.dataLeft > 0 {
			s.dataLeft -= s.audio.Consume(raw, s.dataLeft)
			if s.dataLeft > 0 {
				return
			}
		}

		if !s.inMeta {
			b, ok := raw.ReadByte()
			if !ok {
				return
			}
			if b == 0 {
				// No metadata this cycle.
				s.dataLeft = s.interval
				continue
			}
			s.inMeta = true
			s.metaLeft = int(b) * 16
		}

		s.metaLeft -= s.meta.Consume(raw, s.metaLeft)
		if s.metaLeft > 0 {
			return
		}

		block := s.meta.ReadN(s.meta.Len())
		s.inMeta = false
		s.dataLeft = s.interval
		if s.OnMetadata != nil {
			s.OnMetadata(ParseBlock(block))
		}
	}
}
