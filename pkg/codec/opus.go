package codec

import (
	"fmt"

	"github.com/thesyncim/gopus"
	"github.com/thesyncim/gopus/container/ogg"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

// Opus always decodes at 48 kHz regardless of the source rate.
const opusRate = 48000

// maxOpusFrame is the largest frame a single packet segment can carry:
// 60 ms at 48 kHz.
const maxOpusFrame = 2880

type opusDecoder struct {
	demux    *oggDemux
	dec      *gopus.Decoder
	head     *ogg.OpusHead
	preSkip  int
	tagsSeen bool
	spec     audio.Spec
	specOK   bool
	info     audio.DecoderInfo
	pending  *audio.Metadata
	pcm      []float32
}

func newOpus() *opusDecoder {
	return &opusDecoder{demux: newOggDemux()}
}

func (d *opusDecoder) Feed(p []byte) int {
	return d.demux.feed(p)
}

func (d *opusDecoder) Decode() ([]byte, error) {
	for {
		pkt, ok := d.demux.next()
		if !ok {
			return nil, nil
		}

		if d.head == nil {
			if err := d.readHead(pkt); err != nil {
				return nil, err
			}
			continue
		}
		if !d.tagsSeen {
			d.readTags(pkt)
			continue
		}
		if len(pkt) == 0 {
			// Zero-length packets (end-of-stream pages) carry no audio;
			// handing them to the library would trigger loss concealment.
			continue
		}

		n, err := d.dec.Decode(pkt, d.pcm)
		if err != nil {
			// A packet the decoder rejects is a hole in the
			// bitstream; skip it and keep going.
			continue
		}

		samples := d.pcm[:n*int(d.head.Channels)]
		if d.preSkip > 0 {
			skip := d.preSkip
			if skip > n {
				skip = n
			}
			d.preSkip -= skip
			samples = samples[skip*int(d.head.Channels):]
			if len(samples) == 0 {
				continue
			}
		}
		return appendS16(make([]byte, 0, len(samples)*2), samples), nil
	}
}

func (d *opusDecoder) readHead(pkt []byte) error {
	head, err := ogg.ParseOpusHead(pkt)
	if err != nil {
		// Not the identification header; could be a leftover page
		// from before a resync. Wait for the real one.
		return nil
	}
	if head.Channels > 2 {
		return fmt.Errorf("codec: opus: %d channels not supported", head.Channels)
	}
	dec, err := gopus.NewDecoder(gopus.DefaultDecoderConfig(opusRate, int(head.Channels)))
	if err != nil {
		return fmt.Errorf("codec: opus init: %w", err)
	}
	d.head = head
	d.dec = dec
	d.preSkip = int(head.PreSkip)
	d.pcm = make([]float32, maxOpusFrame*int(head.Channels)*2)
	d.spec = audio.Spec{Format: audio.S16, Rate: opusRate, Channels: int(head.Channels)}
	d.specOK = true
	d.info = audio.DecoderInfo{Codec: "Opus"}
	return nil
}

func (d *opusDecoder) readTags(pkt []byte) {
	d.tagsSeen = true
	tags, err := ogg.ParseOpusTags(pkt)
	if err != nil {
		return
	}
	if m := commentsMetadata(tags.Comments); !m.IsZero() {
		d.pending = &m
	}
}

func (d *opusDecoder) Spec() (audio.Spec, bool) {
	return d.spec, d.specOK
}

func (d *opusDecoder) Info() audio.DecoderInfo {
	return d.info
}

func (d *opusDecoder) Metadata() (audio.Metadata, bool) {
	if d.pending == nil {
		return audio.Metadata{}, false
	}
	m := *d.pending
	d.pending = nil
	return m, true
}

func (d *opusDecoder) Close() error {
	d.dec = nil
	return nil
}
