package codec

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jfreymuth/vorbis"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

type vorbisDecoder struct {
	demux       *oggDemux
	dec         vorbis.Decoder
	headersRead int
	spec        audio.Spec
	specOK      bool
	info        audio.DecoderInfo
	pending     *audio.Metadata
}

func newVorbis() *vorbisDecoder {
	return &vorbisDecoder{demux: newOggDemux()}
}

func (d *vorbisDecoder) Feed(p []byte) int {
	return d.demux.feed(p)
}

func (d *vorbisDecoder) Decode() ([]byte, error) {
	for {
		pkt, ok := d.demux.next()
		if !ok {
			return nil, nil
		}

		if d.headersRead < 3 {
			if err := d.readHeader(pkt); err != nil {
				return nil, err
			}
			continue
		}

		samples, err := d.dec.Decode(pkt)
		if err != nil {
			// Undecodable packet: a hole, not a stream failure.
			continue
		}
		if len(samples) == 0 {
			continue
		}
		return appendS16(make([]byte, 0, len(samples)*2), samples), nil
	}
}

func (d *vorbisDecoder) readHeader(pkt []byte) error {
	// The comment header carries the stream tags; grab them before
	// handing the packet to the decoder.
	if len(pkt) > 7 && pkt[0] == 3 && string(pkt[1:7]) == "vorbis" {
		if comments, ok := parseVorbisComments(pkt[7:]); ok {
			if m := commentsMetadata(comments); !m.IsZero() {
				d.pending = &m
			}
		}
	}

	if err := d.dec.ReadHeader(pkt); err != nil {
		if d.headersRead == 0 {
			// Leftover audio page from before a resync; keep waiting
			// for the identification header.
			return nil
		}
		return fmt.Errorf("codec: vorbis header: %w", err)
	}
	d.headersRead++

	if d.headersRead == 3 {
		d.spec = audio.Spec{
			Format:   audio.S16,
			Rate:     d.dec.SampleRate(),
			Channels: d.dec.Channels(),
		}
		d.specOK = true
		d.info = audio.DecoderInfo{Codec: "Vorbis"}
	}
	return nil
}

func (d *vorbisDecoder) Spec() (audio.Spec, bool) {
	return d.spec, d.specOK
}

func (d *vorbisDecoder) Info() audio.DecoderInfo {
	return d.info
}

func (d *vorbisDecoder) Metadata() (audio.Metadata, bool) {
	if d.pending == nil {
		return audio.Metadata{}, false
	}
	m := *d.pending
	d.pending = nil
	return m, true
}

func (d *vorbisDecoder) Close() error {
	d.demux = nil
	return nil
}

// parseVorbisComments decodes the body of a Vorbis comment header
// (after the 7-byte packet magic): vendor string, then a list of
// length-prefixed KEY=value entries, all lengths little-endian u32.
func parseVorbisComments(data []byte) (map[string]string, bool) {
	if len(data) < 8 {
		return nil, false
	}
	off := 0

	vendorLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if off+vendorLen+4 > len(data) {
		return nil, false
	}
	off += vendorLen

	count := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	out := make(map[string]string)
	for i := 0; i < count; i++ {
		if off+4 > len(data) {
			return out, true // truncated list: keep what we have
		}
		entryLen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if entryLen < 0 || off+entryLen > len(data) {
			return out, true
		}
		entry := string(data[off : off+entryLen])
		off += entryLen

		if k, v, found := strings.Cut(entry, "="); found {
			out[k] = v
		}
	}
	return out, true
}

// commentsMetadata maps Vorbis-style comments (also used by Opus tags)
// onto stream metadata. Comment keys are case-insensitive.
func commentsMetadata(comments map[string]string) audio.Metadata {
	var m audio.Metadata
	for k, v := range comments {
		if v == "" {
			continue
		}
		switch strings.ToUpper(k) {
		case "TITLE":
			m.Title = v
		case "ARTIST":
			m.Artist = v
		case "ALBUM":
			m.Album = v
		case "GENRE":
			m.Genre = v
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = v
		}
	}
	return m
}
