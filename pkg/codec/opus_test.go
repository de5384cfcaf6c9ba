package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/thesyncim/gopus"
	"github.com/thesyncim/gopus/container/ogg"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

const opusTestFrame = 960 // 20 ms at 48 kHz

// encodeOpusStream builds a complete Ogg Opus stream from a sine tone
// using the encoder side of the same library.
func encodeOpusStream(t *testing.T, frames int) []byte {
	t.Helper()

	enc, err := gopus.NewEncoder(opusRate, 1, gopus.ApplicationAudio)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}

	var wire bytes.Buffer
	w, err := ogg.NewWriter(&wire, opusRate, 1)
	if err != nil {
		t.Fatalf("ogg writer: %v", err)
	}

	pcm := make([]float32, opusTestFrame)
	phase := 0.0
	for f := 0; f < frames; f++ {
		for i := range pcm {
			pcm[i] = float32(0.25 * math.Sin(phase))
			phase += 2 * math.Pi * 440 / opusRate
		}
		pkt, err := enc.EncodeFloat32(pcm)
		if err != nil {
			t.Fatalf("encode frame %d: %v", f, err)
		}
		if err := w.WritePacket(pkt, opusTestFrame); err != nil {
			t.Fatalf("write packet %d: %v", f, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return wire.Bytes()
}

// decodeOpusChunked feeds wire into a fresh decoder chunk bytes at a
// time and collects all produced PCM.
func decodeOpusChunked(t *testing.T, d *opusDecoder, wire []byte, chunk int) []byte {
	t.Helper()

	var out []byte
	drain := func() {
		for {
			pcm, err := d.Decode()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if pcm == nil {
				return
			}
			out = append(out, pcm...)
		}
	}
	for off := 0; off < len(wire); off += chunk {
		end := off + chunk
		if end > len(wire) {
			end = len(wire)
		}
		d.Feed(wire[off:end])
		drain()
	}
	drain()
	return out
}

func TestOpusDecodeRoundTrip(t *testing.T) {
	const frames = 10
	wire := encodeOpusStream(t, frames)

	d := newOpus()
	pcm := decodeOpusChunked(t, d, wire, len(wire))

	spec, ok := d.Spec()
	if !ok {
		t.Fatal("spec should be known after the identification header")
	}
	want := audio.Spec{Format: audio.S16, Rate: opusRate, Channels: 1}
	if spec != want {
		t.Errorf("spec %+v, want %+v", spec, want)
	}

	// Pre-skip samples from the identification header are discarded.
	wantBytes := (frames*opusTestFrame - ogg.DefaultPreSkip) * 2
	if len(pcm) != wantBytes {
		t.Errorf("decoded %d bytes, want %d", len(pcm), wantBytes)
	}
}

func TestOpusDecodeChunkedMatchesWhole(t *testing.T) {
	wire := encodeOpusStream(t, 10)

	whole := decodeOpusChunked(t, newOpus(), wire, len(wire))
	if len(whole) == 0 {
		t.Fatal("no PCM decoded")
	}

	for _, chunk := range []int{1, 7, 100} {
		got := decodeOpusChunked(t, newOpus(), wire, chunk)
		if !bytes.Equal(whole, got) {
			t.Errorf("chunk size %d: PCM differs from single-shot feed (%d vs %d bytes)",
				chunk, len(got), len(whole))
		}
	}
}
