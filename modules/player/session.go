package player

import (
	"log/slog"
	"strconv"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
	"github.com/dkosmari/RadiiU-sub000/pkg/codec"
	"github.com/dkosmari/RadiiU-sub000/pkg/icy"
	"github.com/dkosmari/RadiiU-sub000/pkg/sink"
	"github.com/dkosmari/RadiiU-sub000/pkg/station"
)

// source is the byte-source contract the session drives. transport.Client
// satisfies it; tests substitute a scripted fake.
type source interface {
	Process(dst *bytestream.Stream) int
	Responded() bool
	Finished() bool
	Header(name string) string
	Pause()
	Resume()
	Close() error
}

type sessionState int

const (
	stateStopped sessionState = iota
	statePlaying
	stateStopping
)

func (s sessionState) String() string {
	switch s {
	case statePlaying:
		return "playing"
	case stateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// feedChunkSize bounds how much compressed data goes into the decoder
// per tick, so one tick never decodes an unbounded backlog.
const feedChunkSize = 4096

// session is one active playback. All access happens on the player's
// worker goroutine; nothing here is safe for concurrent use.
type session struct {
	logger *slog.Logger
	cfg    *Config
	sinks  sink.Factory

	state   sessionState
	src     source
	raw     *bytestream.Stream
	split   *icy.Splitter
	dec     codec.Decoder
	snk     sink.Sink
	paused  bool
	station station.Station
	meta    audio.Metadata

	onMetadata func(audio.Metadata)
	onSpec     func(audio.Spec)
	onInfo     func(audio.DecoderInfo)
	onState    func(string)

	newDecoder func(contentType string, head []byte) (codec.Decoder, error)
}

func newSession(logger *slog.Logger, cfg *Config, sinks sink.Factory) *session {
	return &session{
		logger:     logger,
		cfg:        cfg,
		sinks:      sinks,
		newDecoder: codec.New,
	}
}

// start takes ownership of an already-connected source.
func (s *session) start(src source, st station.Station) {
	s.teardown()
	s.src = src
	s.station = st
	s.raw = bytestream.New()
	s.meta = audio.Metadata{StationName: st.Name}
	s.setState(statePlaying)
	s.publishMetadata()
}

// stop tears the session down; it completes within the current tick.
func (s *session) stop() {
	s.teardown()
}

// tick advances the session one step. Any panic below is contained
// here: the session stops and the process keeps running.
func (s *session) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during playback tick", "panic", r)
			s.teardown()
		}
	}()

	switch s.state {
	case stateStopped:
		return
	case stateStopping:
		s.teardown()
		return
	}

	if !s.src.Responded() {
		return
	}
	if s.split == nil {
		s.setupSplitter()
	}

	if n := s.src.Process(s.raw); n > 0 {
		metricBytesReceived.Add(float64(n))
	}
	s.split.Process(s.raw)

	buf := s.split.Audio()
	if s.src.Finished() && s.raw.Len() == 0 && buf.Len() == 0 {
		s.logger.Info("stream ended", "url", s.station.URL)
		s.setState(stateStopping)
		return
	}

	buffered := buf.Len()
	if buffered > s.cfg.HighWatermark && !s.paused {
		// Crossing tick: signal the pause, let the buffer drain on
		// later ticks.
		s.src.Pause()
		s.paused = true
		metricTransportPauses.Inc()
	} else if buffered >= s.cfg.LowWatermark || s.paused || s.src.Finished() {
		if !s.decode(buf) {
			return
		}
	}

	if s.paused && s.split.Audio().Len() < s.cfg.HighWatermark {
		s.src.Resume()
		s.paused = false
	}
}

func (s *session) setupSplitter() {
	interval := 0
	if v := s.src.Header("icy-metaint"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.logger.Warn("ignoring bad icy-metaint header", "value", v)
		} else {
			interval = n
		}
	}
	s.split = icy.NewSplitter(interval)
	s.split.OnMetadata = func(values map[string]string) {
		s.meta.Merge(icy.BlockMetadata(values))
		s.publishMetadata()
		metricMetadataUpdates.Inc()
	}

	headers := icy.HeadersMetadata(s.src.Header)
	if !headers.IsZero() {
		s.meta.Merge(headers)
		s.publishMetadata()
	}
	s.logger.Info("stream responded",
		"content_type", s.src.Header("Content-Type"),
		"metaint", interval)
}

// decode runs steps 5 and 6: feed a bounded chunk, then drain frames to
// the sink. Returns false when the session was torn down.
func (s *session) decode(buf *bytestream.Stream) bool {
	if s.dec == nil {
		if buf.Len() < codec.MinSniffBytes && !s.src.Finished() {
			return true
		}
		contentType := s.src.Header("Content-Type")
		dec, err := s.newDecoder(contentType, buf.Peek(codec.MinSniffBytes))
		if err != nil {
			s.logger.Error("no usable stream", "err", err, "content_type", contentType)
			s.teardown()
			return false
		}
		s.dec = dec
		s.logger.Info("decoder selected", "codec", dec.Info().Codec)
	}

	if buf.Len() > 0 {
		n := feedChunkSize
		if buf.Len() < n {
			n = buf.Len()
		}
		s.dec.Feed(buf.ReadN(n))
	}

	for {
		pcm, err := s.dec.Decode()
		if err != nil {
			metricDecodeErrors.Inc()
			s.logger.Error("decode failed", "err", err)
			s.teardown()
			return false
		}
		if len(pcm) == 0 {
			break
		}
		if s.snk == nil {
			spec, ok := s.dec.Spec()
			if !ok {
				break
			}
			snk, err := s.sinks(spec)
			if err != nil {
				s.logger.Error("error opening audio sink", "err", err, "spec", spec)
				s.teardown()
				return false
			}
			s.snk = snk
			if s.onSpec != nil {
				s.onSpec(spec)
			}
			s.logger.Info("audio sink opened",
				"format", spec.Format, "rate", spec.Rate, "channels", spec.Channels)
		}
		if err := s.snk.Play(pcm); err != nil {
			s.logger.Error("error writing to audio sink", "err", err)
			s.teardown()
			return false
		}
	}

	if md, ok := s.dec.Metadata(); ok {
		s.meta.Merge(md)
		s.publishMetadata()
		metricMetadataUpdates.Inc()
	}
	if s.onInfo != nil {
		s.onInfo(s.dec.Info())
	}
	return true
}

// teardown releases everything synchronously and returns to stopped.
func (s *session) teardown() {
	if s.src != nil {
		if err := s.src.Close(); err != nil {
			s.logger.Debug("error closing transport", "err", err)
		}
		s.src = nil
	}
	if s.dec != nil {
		if err := s.dec.Close(); err != nil {
			s.logger.Debug("error closing decoder", "err", err)
		}
		s.dec = nil
	}
	if s.snk != nil {
		if err := s.snk.Close(); err != nil {
			s.logger.Debug("error closing sink", "err", err)
		}
		s.snk = nil
	}
	if s.raw != nil {
		s.raw.Reset()
	}
	s.split = nil
	s.paused = false
	s.setState(stateStopped)
}

func (s *session) setState(st sessionState) {
	if s.state == st {
		return
	}
	s.state = st
	if s.onState != nil {
		s.onState(st.String())
	}
}

func (s *session) publishMetadata() {
	if s.onMetadata != nil {
		s.onMetadata(s.meta)
	}
}
