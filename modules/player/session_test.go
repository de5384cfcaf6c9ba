package player

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
	"github.com/dkosmari/RadiiU-sub000/pkg/codec"
	"github.com/dkosmari/RadiiU-sub000/pkg/sink"
	"github.com/dkosmari/RadiiU-sub000/pkg/station"
)

type fakeSource struct {
	pending *bytestream.Stream
	chunk   int
	headers map[string]string
	ends    bool

	paused  bool
	pauses  int
	resumes int
	closed  bool
}

func newFakeSource(data []byte, chunk int) *fakeSource {
	s := &fakeSource{
		pending: bytestream.New(),
		chunk:   chunk,
		headers: map[string]string{},
	}
	s.pending.Write(data)
	return s
}

func (f *fakeSource) Process(dst *bytestream.Stream) int {
	if f.paused {
		return 0
	}
	return dst.Consume(f.pending, f.chunk)
}

func (f *fakeSource) Responded() bool { return true }
func (f *fakeSource) Finished() bool  { return f.ends && f.pending.Len() == 0 }

func (f *fakeSource) Header(name string) string { return f.headers[name] }

func (f *fakeSource) Pause() {
	f.paused = true
	f.pauses++
}

func (f *fakeSource) Resume() {
	f.paused = false
	f.resumes++
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

// fakeDecoder turns every frameIn input bytes into 2*frameIn PCM bytes.
type fakeDecoder struct {
	buf      []byte
	fed      []byte
	frameIn  int
	spec     audio.Spec
	failWith error
	closed   bool
}

func (d *fakeDecoder) Feed(p []byte) int {
	d.buf = append(d.buf, p...)
	d.fed = append(d.fed, p...)
	return len(p)
}

func (d *fakeDecoder) Decode() ([]byte, error) {
	if d.failWith != nil {
		return nil, d.failWith
	}
	if len(d.buf) < d.frameIn {
		return nil, nil
	}
	d.buf = d.buf[d.frameIn:]
	return make([]byte, 2*d.frameIn), nil
}

func (d *fakeDecoder) Spec() (audio.Spec, bool) { return d.spec, true }

func (d *fakeDecoder) Info() audio.DecoderInfo { return audio.DecoderInfo{Codec: "fake"} }

func (d *fakeDecoder) Metadata() (audio.Metadata, bool) { return audio.Metadata{}, false }

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

type captureSink struct {
	spec   audio.Spec
	played int
	closed bool
}

func (s *captureSink) Play(pcm []byte) error {
	s.played += len(pcm)
	return nil
}

func (s *captureSink) Unpause()         {}
func (s *captureSink) Spec() audio.Spec { return s.spec }

func (s *captureSink) Close() error {
	s.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession(cfg *Config, dec *fakeDecoder) (*session, *captureSink) {
	snk := &captureSink{}
	factory := func(spec audio.Spec) (sink.Sink, error) {
		snk.spec = spec
		return snk, nil
	}
	s := newSession(testLogger(), cfg, factory)
	if dec != nil {
		s.newDecoder = func(contentType string, head []byte) (codec.Decoder, error) {
			return dec, nil
		}
	}
	return s, snk
}

func TestSessionBackpressurePausesOncePerCrossing(t *testing.T) {
	cfg := &Config{LowWatermark: 10, HighWatermark: 100, TickInterval: defaultTickInterval}
	dec := &fakeDecoder{frameIn: 50, spec: audio.Spec{Format: audio.S16, Rate: 44100, Channels: 2}}
	sess, _ := testSession(cfg, dec)

	src := newFakeSource(make([]byte, 20000), 10000)
	sess.start(src, station.Station{Name: "Test FM"})

	// Tick 1: 10000 bytes arrive, crossing the high watermark.
	sess.tick()
	if src.pauses != 1 {
		t.Fatalf("pauses after crossing = %d, want 1", src.pauses)
	}
	if !src.paused {
		t.Fatal("transport should be paused")
	}

	// While paused and still above the watermark, no further pause
	// signals and no resume; the decoder drains 4096 bytes per tick.
	sess.tick()
	sess.tick()
	if src.pauses != 1 {
		t.Errorf("pauses while draining = %d, want 1", src.pauses)
	}
	if src.resumes != 0 {
		t.Errorf("resumed while still above watermark, resumes = %d", src.resumes)
	}

	// Tick 4 drains the rest and drops below the watermark: exactly one
	// resume.
	sess.tick()
	if src.resumes != 1 {
		t.Fatalf("resumes after drain = %d, want 1", src.resumes)
	}
	if src.paused {
		t.Fatal("transport should be resumed")
	}

	// The next delivery crosses again: a second pause.
	sess.tick()
	if src.pauses != 2 {
		t.Fatalf("pauses after second crossing = %d, want 2", src.pauses)
	}
}

func TestSessionSplitsAndMergesMetadata(t *testing.T) {
	cfg := &Config{LowWatermark: 1, HighWatermark: 1000, TickInterval: defaultTickInterval}
	dec := &fakeDecoder{frameIn: 4, spec: audio.Spec{Format: audio.S16, Rate: 44100, Channels: 2}}
	sess, snk := testSession(cfg, dec)

	block := []byte("StreamTitle='X';")
	var data []byte
	data = append(data, []byte("AAAAAAAA")...)
	data = append(data, byte(len(block)/16))
	data = append(data, block...)
	data = append(data, []byte("BBBBBBBB")...)

	src := newFakeSource(data, len(data))
	src.ends = true
	src.headers["icy-metaint"] = "8"
	src.headers["icy-name"] = "Test FM"
	src.headers["icy-genre"] = "Jazz"
	src.headers["Content-Type"] = "audio/mpeg"

	var got audio.Metadata
	sess.onMetadata = func(m audio.Metadata) { got = m }

	sess.start(src, station.Station{Name: "directory name"})
	sess.tick()

	if string(dec.fed) != "AAAAAAAABBBBBBBB" {
		t.Errorf("decoder fed %q, want clean audio bytes", dec.fed)
	}
	if got.Title != "X" {
		t.Errorf("title %q, want X", got.Title)
	}
	if got.StationName != "Test FM" {
		t.Errorf("station name %q, want header value", got.StationName)
	}
	if got.StationGenre != "Jazz" {
		t.Errorf("station genre %q", got.StationGenre)
	}
	if snk.spec.Rate != 44100 {
		t.Errorf("sink spec %+v", snk.spec)
	}
	if snk.played != 32 {
		t.Errorf("played %d bytes, want 32", snk.played)
	}

	// Transport end: one tick to notice, one to release.
	sess.tick()
	if sess.state != stateStopping {
		t.Fatalf("state %v after end of stream, want stopping", sess.state)
	}
	sess.tick()
	if sess.state != stateStopped {
		t.Fatalf("state %v, want stopped", sess.state)
	}
	if !src.closed || !dec.closed || !snk.closed {
		t.Error("resources not released on stream end")
	}
}

func TestSessionStopIsImmediate(t *testing.T) {
	cfg := &Config{LowWatermark: 1, HighWatermark: 1000, TickInterval: defaultTickInterval}
	dec := &fakeDecoder{frameIn: 4, spec: audio.Spec{Format: audio.S16, Rate: 44100, Channels: 2}}
	sess, _ := testSession(cfg, dec)

	src := newFakeSource(make([]byte, 500), 100)
	sess.start(src, station.Station{})
	sess.tick()

	sess.stop()
	if sess.state != stateStopped {
		t.Fatalf("state %v after stop, want stopped", sess.state)
	}
	if !src.closed {
		t.Error("transport not closed on stop")
	}
	if sess.raw.Len() != 0 {
		t.Error("raw stream not cleared on stop")
	}
}

func TestSessionDecodeErrorStopsSession(t *testing.T) {
	cfg := &Config{LowWatermark: 1, HighWatermark: 1000, TickInterval: defaultTickInterval}
	dec := &fakeDecoder{frameIn: 4, spec: audio.Spec{Format: audio.S16, Rate: 44100, Channels: 2}}
	dec.failWith = errors.New("broken bitstream")
	sess, _ := testSession(cfg, dec)

	src := newFakeSource(make([]byte, 500), 500)
	src.ends = true
	sess.start(src, station.Station{})
	sess.tick()

	if sess.state != stateStopped {
		t.Fatalf("state %v after fatal decode error, want stopped", sess.state)
	}
	if !src.closed || !dec.closed {
		t.Error("resources not released after fatal decode error")
	}
}

func TestSessionNoUsableStream(t *testing.T) {
	cfg := &Config{LowWatermark: 1, HighWatermark: 1000, TickInterval: defaultTickInterval}
	snk := &captureSink{}
	sess := newSession(testLogger(), cfg, func(spec audio.Spec) (sink.Sink, error) {
		return snk, nil
	})

	src := newFakeSource([]byte("this is not audio data at all, just text padding and noise"), 100)
	src.ends = true
	src.headers["Content-Type"] = "text/html"
	sess.start(src, station.Station{})
	sess.tick()

	if sess.state != stateStopped {
		t.Fatalf("state %v for unusable stream, want stopped", sess.state)
	}
	if snk.played != 0 {
		t.Error("sink should never receive data for an unusable stream")
	}
}

type panickySource struct {
	fakeSource
}

func (p *panickySource) Process(dst *bytestream.Stream) int {
	panic("process exploded")
}

func TestSessionTickContainsPanics(t *testing.T) {
	cfg := &Config{LowWatermark: 1, HighWatermark: 1000, TickInterval: defaultTickInterval}
	sess, _ := testSession(cfg, nil)

	src := &panickySource{}
	src.pending = bytestream.New()
	sess.start(src, station.Station{})

	sess.tick() // must not propagate
	if sess.state != stateStopped {
		t.Fatalf("state %v after panic, want stopped", sess.state)
	}
	if !src.closed {
		t.Error("transport not closed after panic teardown")
	}
}
