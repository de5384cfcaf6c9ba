// Package codec provides a uniform incremental-decode interface over
// the supported stream codecs (MP3, Vorbis, Opus, AAC). Compressed
// bytes are pushed in with Feed; Decode pulls out one frame of
// interleaved PCM at a time. "Not enough input yet" is an ordinary
// (nil, nil) result, never an error.
package codec

import (
	"errors"
	"strings"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

// ErrNoUsableStream is returned by New when neither the content type
// nor the byte signature matches a supported codec.
var ErrNoUsableStream = errors.New("codec: no usable stream detected")

// MinSniffBytes is how much of the stream callers should buffer before
// calling New: signature sniffing for Ogg streams needs the first page
// payload, not just the leading magic.
const MinSniffBytes = 256

// Decoder is an incremental decoder for one codec. Instances are not
// safe for concurrent use and are never reused across codecs.
type Decoder interface {
	// Feed appends compressed bytes to the decoder's input buffer.
	// It never blocks and never decodes eagerly.
	Feed(p []byte) int

	// Decode attempts to produce one frame of interleaved PCM.
	// (nil, nil) means more input is needed, or a benign condition
	// such as a recoverable bitstream hole. A non-nil error is fatal
	// for the stream.
	Decode() ([]byte, error)

	// Spec reports the output format once enough header data has been
	// parsed to know it.
	Spec() (audio.Spec, bool)

	// Info is a best-effort human readable description, possibly
	// empty before enough data has arrived.
	Info() audio.DecoderInfo

	// Metadata returns codec-embedded tags (ID3, Vorbis comments).
	// A given tag block is reported exactly once; subsequent calls
	// return false until a new block arrives.
	Metadata() (audio.Metadata, bool)

	Close() error
}

// New selects and constructs a decoder: explicit content-type match
// first, byte-signature sniffing on head second. head should hold at
// least MinSniffBytes of the stream when available.
func New(contentType string, head []byte) (Decoder, error) {
	switch detect(contentType, head) {
	case kindMP3:
		return newMP3(), nil
	case kindVorbis:
		return newVorbis(), nil
	case kindOpus:
		return newOpus(), nil
	case kindAAC:
		return newAAC()
	default:
		return nil, ErrNoUsableStream
	}
}

type kind int

const (
	kindUnknown kind = iota
	kindMP3
	kindVorbis
	kindOpus
	kindAAC
)

func detect(contentType string, head []byte) kind {
	if mt := mediaType(contentType); mt != "" {
		switch mt {
		case "audio/mpeg", "audio/mp3", "audio/x-mpeg":
			return kindMP3
		case "audio/aac", "audio/aacp", "audio/x-aac":
			return kindAAC
		case "audio/opus":
			return kindOpus
		case "audio/vorbis":
			return kindVorbis
		case "audio/ogg", "application/ogg", "audio/x-ogg":
			// The container alone does not say which codec is inside.
			if k := sniffOgg(head); k != kindUnknown {
				return k
			}
			return kindUnknown
		}
	}
	return sniff(head)
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// sniff inspects the leading bytes of the stream.
func sniff(head []byte) kind {
	if len(head) >= 4 && string(head[:4]) == "OggS" {
		return sniffOgg(head)
	}
	if len(head) >= 3 && string(head[:3]) == "ID3" {
		return kindMP3
	}
	if len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		// MPEG audio and ADTS share the sync pattern; the layer bits
		// tell them apart (ADTS uses layer 00, MP3 uses layer III).
		if (head[1]>>1)&0x3 == 0 {
			return kindAAC
		}
		return kindMP3
	}
	return kindUnknown
}

// sniffOgg looks at the first packet of the first Ogg page to pick the
// codec inside the container.
func sniffOgg(head []byte) kind {
	if len(head) < 28 || string(head[:4]) != "OggS" {
		return kindUnknown
	}
	nseg := int(head[26])
	payload := 27 + nseg
	if len(head) < payload+8 {
		return kindUnknown
	}
	switch {
	case string(head[payload:payload+8]) == "OpusHead":
		return kindOpus
	case len(head) >= payload+7 && string(head[payload:payload+7]) == "\x01vorbis":
		return kindVorbis
	}
	return kindUnknown
}
