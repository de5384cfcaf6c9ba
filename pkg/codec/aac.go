package codec

import (
	"fmt"

	"github.com/winlinvip/go-fdkaac/fdkaac"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
)

const (
	// aacMinBuffered is the minimum input the decoder wants before an
	// attempt: one worst-case ADTS frame per channel pair.
	aacMinBuffered = 768 * 2

	// aacChunk bounds how much compressed input one Decode call hands
	// to the library.
	aacChunk = 2048
)

type aacDecoder struct {
	buf    *bytestream.Stream
	dec    *fdkaac.AacDecoder
	spec   audio.Spec
	specOK bool
	info   audio.DecoderInfo
}

func newAAC() (*aacDecoder, error) {
	dec := fdkaac.NewAacDecoder()
	if err := dec.InitAdts(); err != nil {
		return nil, fmt.Errorf("codec: aac init: %w", err)
	}
	return &aacDecoder{
		buf: bytestream.New(),
		dec: dec,
	}, nil
}

func (d *aacDecoder) Feed(p []byte) int {
	if d.info.Codec == "" {
		if h, ok := parseADTSHeader(p); ok {
			d.info = audio.DecoderInfo{Codec: h.description()}
		}
	}
	n, _ := d.buf.Write(p)
	return n
}

func (d *aacDecoder) Decode() ([]byte, error) {
	if d.buf.Len() < aacMinBuffered {
		return nil, nil
	}

	pcm, err := d.dec.Decode(d.buf.ReadN(aacChunk))
	if err != nil {
		return nil, fmt.Errorf("codec: aac decode: %w", err)
	}
	if len(pcm) == 0 {
		return nil, nil
	}

	// The stream format can change mid-stream; the library reports
	// the actual values after each decode. Refresh the spec and let
	// the flow controller decide what to do about the sink.
	d.spec = audio.Spec{
		Format:   audio.S16,
		Rate:     d.dec.SampleRate(),
		Channels: d.dec.NumChannels(),
	}
	d.specOK = d.spec.Rate > 0 && d.spec.Channels > 0

	return pcm, nil
}

func (d *aacDecoder) Spec() (audio.Spec, bool) {
	return d.spec, d.specOK
}

func (d *aacDecoder) Info() audio.DecoderInfo {
	return d.info
}

func (d *aacDecoder) Metadata() (audio.Metadata, bool) {
	// ADTS streams carry no embedded tags.
	return audio.Metadata{}, false
}

func (d *aacDecoder) Close() error {
	d.buf.Reset()
	return d.dec.Close()
}

// adtsHeader is the parsed fixed part of an ADTS frame header.
type adtsHeader struct {
	profile    int // AAC profile (1 = Main, 2 = LC, 3 = SSR)
	sampleRate int
	channels   int
}

var adtsRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

func (h adtsHeader) description() string {
	switch h.profile {
	case 1:
		return "AAC (Main)"
	case 2:
		return "AAC (LC)"
	case 3:
		return "AAC (SSR)"
	default:
		return "AAC"
	}
}

// parseADTSHeader decodes the fixed header of an ADTS frame.
func parseADTSHeader(b []byte) (adtsHeader, bool) {
	if len(b) < 7 || b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return adtsHeader{}, false
	}
	if (b[1]>>1)&0x3 != 0 { // layer must be 00 for ADTS
		return adtsHeader{}, false
	}

	h := adtsHeader{
		profile:    int(b[2]>>6) + 1,
		sampleRate: adtsRates[(b[2]>>2)&0xF],
		channels:   int(b[2]&0x1)<<2 | int(b[3]>>6),
	}
	if h.sampleRate == 0 {
		return adtsHeader{}, false
	}
	return h, true
}
