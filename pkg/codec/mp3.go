package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dhowden/tag"
	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
)

// errNeedData is the sentinel a starved input reader returns. It marks
// "come back with more bytes" and must never surface as a stream error.
var errNeedData = errors.New("codec: need more input")

const (
	// mp3InitBytes is buffered before the library is constructed, so
	// header probing never starves mid-way.
	mp3InitBytes = 8192

	// mp3MinDecode keeps at least one worst-case frame (1441 bytes at
	// 320 kbit/s, 32 kHz, plus the next header) buffered per decode.
	mp3MinDecode = 2048

	// mp3FrameSamples is the PCM size of one MPEG-1 layer III frame:
	// 1152 samples, stereo, 16-bit.
	mp3FrameSamples = 1152 * 2 * 2
)

// starvedReader adapts a bytestream for the pull-based mp3 library:
// an empty stream reads as errNeedData rather than EOF, so the library
// never mistakes network jitter for end of stream.
type starvedReader struct {
	s *bytestream.Stream
}

func (r starvedReader) Read(p []byte) (int, error) {
	if r.s.Len() == 0 {
		return 0, errNeedData
	}
	return r.s.Read(p)
}

type mp3Decoder struct {
	buf     *bytestream.Stream
	dec     *gomp3.Decoder
	spec    audio.Spec
	specOK  bool
	info    audio.DecoderInfo
	pending *audio.Metadata
	out     []byte
}

func newMP3() *mp3Decoder {
	return &mp3Decoder{
		buf: bytestream.New(),
		out: make([]byte, mp3FrameSamples),
	}
}

func (d *mp3Decoder) Feed(p []byte) int {
	n, _ := d.buf.Write(p)
	return n
}

func (d *mp3Decoder) Decode() ([]byte, error) {
	if err := d.skipID3(); err != nil {
		return nil, err
	}

	if d.dec == nil {
		if d.buf.Len() < mp3InitBytes {
			return nil, nil
		}
		if err := d.initDecoder(); err != nil {
			return nil, err
		}
		if d.dec == nil {
			return nil, nil
		}
	}

	if d.buf.Len() < mp3MinDecode {
		return nil, nil
	}

	n, err := d.dec.Read(d.out)
	if n > 0 {
		frame := make([]byte, n)
		copy(frame, d.out[:n])
		return frame, nil
	}
	if err == nil || errors.Is(err, errNeedData) || err == io.EOF {
		return nil, nil
	}
	return nil, fmt.Errorf("codec: mp3 decode: %w", err)
}

// initDecoder constructs the mp3 library over the accumulator. A
// construction attempt that starves is rolled back so no input bytes
// are lost; d.dec stays nil and the caller retries with more data.
func (d *mp3Decoder) initDecoder() error {
	snapshot := d.buf.Peek(d.buf.Len())
	dec, err := gomp3.NewDecoder(starvedReader{d.buf})
	if err != nil {
		d.buf.Reset()
		d.buf.Write(snapshot)
		if errors.Is(err, errNeedData) {
			return nil
		}
		return fmt.Errorf("codec: mp3 init: %w", err)
	}
	d.dec = dec
	// The library always emits 16-bit signed stereo, converting
	// higher-depth sources down, so the sink never sees an
	// unsupported format.
	d.spec = audio.Spec{Format: audio.S16, Rate: dec.SampleRate(), Channels: 2}
	d.specOK = true
	d.updateInfo(snapshot)
	return nil
}

// skipID3 recognizes ID3v2 blocks at the head of the accumulator,
// waits until a block is fully buffered, parses it for track tags, and
// removes it from the input.
func (d *mp3Decoder) skipID3() error {
	for {
		head := d.buf.Peek(10)
		if len(head) < 3 || string(head[:3]) != "ID3" {
			return nil
		}
		if len(head) < 10 {
			return nil // header itself not complete yet
		}
		total := 10 + id3v2Size(head[6:10])
		if head[5]&0x10 != 0 {
			total += 10 // footer present
		}
		if d.buf.Len() < total {
			return nil
		}

		block := d.buf.ReadN(total)
		if m, err := tag.ReadFrom(bytes.NewReader(block)); err == nil {
			d.setPending(m)
		}
		// A malformed tag is dropped silently; audio stays in sync
		// because the declared tag length was consumed either way.
	}
}

func (d *mp3Decoder) setPending(m tag.Metadata) {
	md := audio.Metadata{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Genre:  m.Genre(),
	}
	if md.IsZero() {
		return
	}
	d.pending = &md
}

func (d *mp3Decoder) updateInfo(head []byte) {
	for i := 0; i+4 <= len(head); i++ {
		if h, ok := parseMP3FrameHeader(head[i : i+4]); ok {
			d.info = audio.DecoderInfo{
				Codec:   h.description(),
				Bitrate: fmt.Sprintf("%d kbit/s", h.bitrateKbps),
			}
			return
		}
	}
}

func (d *mp3Decoder) Spec() (audio.Spec, bool) {
	return d.spec, d.specOK
}

func (d *mp3Decoder) Info() audio.DecoderInfo {
	return d.info
}

func (d *mp3Decoder) Metadata() (audio.Metadata, bool) {
	if d.pending == nil {
		return audio.Metadata{}, false
	}
	m := *d.pending
	d.pending = nil
	return m, true
}

func (d *mp3Decoder) Close() error {
	d.dec = nil
	d.buf.Reset()
	return nil
}

// id3v2Size decodes the 28-bit synchsafe tag length.
func id3v2Size(b []byte) int {
	return int(b[0]&0x7F)<<21 | int(b[1]&0x7F)<<14 | int(b[2]&0x7F)<<7 | int(b[3]&0x7F)
}

// mp3FrameHeader is the parsed 4-byte MPEG audio frame header.
type mp3FrameHeader struct {
	version     int // 1, 2, or 25 for MPEG-2.5
	bitrateKbps int
	sampleRate  int
}

func (h mp3FrameHeader) description() string {
	switch h.version {
	case 1:
		return "MPEG-1 layer III"
	case 2:
		return "MPEG-2 layer III"
	default:
		return "MPEG-2.5 layer III"
	}
}

var (
	mp3BitratesV1 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	mp3BitratesV2 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}

	mp3RatesV1  = [4]int{44100, 48000, 32000, 0}
	mp3RatesV2  = [4]int{22050, 24000, 16000, 0}
	mp3RatesV25 = [4]int{11025, 12000, 8000, 0}
)

// parseMP3FrameHeader validates a sync word and decodes version,
// bitrate, and sample rate for a layer III frame.
func parseMP3FrameHeader(b []byte) (mp3FrameHeader, bool) {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return mp3FrameHeader{}, false
	}
	versionBits := (b[1] >> 3) & 0x3
	layerBits := (b[1] >> 1) & 0x3
	if versionBits == 1 || layerBits != 1 { // reserved version, or not layer III
		return mp3FrameHeader{}, false
	}

	var h mp3FrameHeader
	bitrateIdx := b[2] >> 4
	rateIdx := (b[2] >> 2) & 0x3

	switch versionBits {
	case 3:
		h.version = 1
		h.bitrateKbps = mp3BitratesV1[bitrateIdx]
		h.sampleRate = mp3RatesV1[rateIdx]
	case 2:
		h.version = 2
		h.bitrateKbps = mp3BitratesV2[bitrateIdx]
		h.sampleRate = mp3RatesV2[rateIdx]
	default:
		h.version = 25
		h.bitrateKbps = mp3BitratesV2[bitrateIdx]
		h.sampleRate = mp3RatesV25[rateIdx]
	}
	if h.bitrateKbps == 0 || h.sampleRate == 0 {
		return mp3FrameHeader{}, false
	}
	return h, true
}
