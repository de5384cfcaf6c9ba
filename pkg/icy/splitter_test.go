package icy

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"

	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
)

// metaBlock builds a length byte plus NUL-padded payload.
func metaBlock(t *testing.T, text string) []byte {
	t.Helper()
	blocks := (len(text) + 15) / 16
	out := make([]byte, 1+blocks*16)
	out[0] = byte(blocks)
	copy(out[1:], text)
	return out
}

func TestSplitterEndToEnd(t *testing.T) {
	// icy-metaint=8: 8 audio bytes, metadata block, 8 more audio bytes.
	var wire []byte
	wire = append(wire, []byte("AAAAAAAA")...)
	wire = append(wire, metaBlock(t, "StreamTitle='X';")...)
	wire = append(wire, []byte("BBBBBBBB")...)

	s := NewSplitter(8)
	var blocks []map[string]string
	s.OnMetadata = func(values map[string]string) {
		blocks = append(blocks, values)
	}

	raw := bytestream.New()
	raw.Write(wire)
	s.Process(raw)

	got := s.Audio().ReadN(s.Audio().Len())
	if string(got) != "AAAAAAAABBBBBBBB" {
		t.Errorf("audio = %q, want %q", got, "AAAAAAAABBBBBBBB")
	}
	if len(blocks) != 1 {
		t.Fatalf("metadata blocks = %d, want 1", len(blocks))
	}
	if blocks[0]["StreamTitle"] != "X" {
		t.Errorf("StreamTitle = %q, want %q", blocks[0]["StreamTitle"], "X")
	}
}

func TestSplitterZeroLengthMetadata(t *testing.T) {
	var wire []byte
	for i := 0; i < 3; i++ {
		wire = append(wire, []byte("0123")...)
		wire = append(wire, 0x00)
	}

	s := NewSplitter(4)
	calls := 0
	s.OnMetadata = func(map[string]string) { calls++ }

	raw := bytestream.New()
	raw.Write(wire)
	s.Process(raw)

	if got := s.Audio().ReadN(100); string(got) != "012301230123" {
		t.Errorf("audio = %q", got)
	}
	if calls != 0 {
		t.Errorf("zero-length blocks produced %d callbacks, want 0", calls)
	}
}

func TestSplitterPassThrough(t *testing.T) {
	s := NewSplitter(0)
	raw := bytestream.New()
	raw.Write([]byte{0xFF, 0xFB, 0x00, 0x01, 0x02})
	s.Process(raw)

	if got := s.Audio().ReadN(5); !bytes.Equal(got, []byte{0xFF, 0xFB, 0x00, 0x01, 0x02}) {
		t.Errorf("pass-through audio = %v", got)
	}
	if raw.Len() != 0 {
		t.Errorf("raw should be drained, %d left", raw.Len())
	}
}

// TestSplitterChunkingDeterminism verifies the core resumability
// property: however the wire bytes are split across Process calls, the
// audio output and the metadata block sequence are identical.
func TestSplitterChunkingDeterminism(t *testing.T) {
	var wire []byte
	titles := []string{
		"StreamTitle='First track';",
		"StreamTitle='Second one';StreamUrl='http://example.com';",
		"", // zero-length metadata cycle
		"StreamTitle='Don't stop';",
	}
	for i, title := range titles {
		audio := bytes.Repeat([]byte{byte('a' + i)}, 32)
		wire = append(wire, audio...)
		if title == "" {
			wire = append(wire, 0x00)
		} else {
			wire = append(wire, metaBlock(t, title)...)
		}
	}
	wire = append(wire, bytes.Repeat([]byte{'z'}, 7)...) // trailing partial audio

	run := func(chunks [][]byte) ([]byte, []map[string]string) {
		s := NewSplitter(32)
		var blocks []map[string]string
		s.OnMetadata = func(values map[string]string) {
			blocks = append(blocks, values)
		}
		raw := bytestream.New()
		for _, c := range chunks {
			raw.Write(c)
			s.Process(raw)
		}
		return s.Audio().ReadN(s.Audio().Len()), blocks
	}

	wantAudio, wantBlocks := run([][]byte{wire})

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		var chunks [][]byte
		rest := wire
		for len(rest) > 0 {
			n := 1 + rng.Intn(len(rest))
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		gotAudio, gotBlocks := run(chunks)
		if !bytes.Equal(gotAudio, wantAudio) {
			t.Fatalf("trial %d: audio differs under chunking", trial)
		}
		if !reflect.DeepEqual(gotBlocks, wantBlocks) {
			t.Fatalf("trial %d: metadata blocks differ: %v vs %v", trial, gotBlocks, wantBlocks)
		}
	}
}

// The length-prefix byte itself can land on a chunk boundary.
func TestSplitterLengthByteSplit(t *testing.T) {
	s := NewSplitter(4)
	var got []map[string]string
	s.OnMetadata = func(values map[string]string) { got = append(got, values) }

	raw := bytestream.New()
	raw.Write([]byte("abcd"))
	s.Process(raw)

	if s.Audio().Len() != 4 {
		t.Fatalf("audio buffered = %d, want 4", s.Audio().Len())
	}
	if len(got) != 0 {
		t.Fatal("no metadata should be parsed yet")
	}

	block := metaBlock(t, "StreamTitle='Y';")
	raw.Write(block[:1]) // just the length byte
	s.Process(raw)
	if len(got) != 0 {
		t.Fatal("metadata complete too early")
	}

	raw.Write(block[1:9]) // half the payload
	s.Process(raw)
	if len(got) != 0 {
		t.Fatal("metadata complete too early")
	}

	raw.Write(block[9:])
	raw.Write([]byte("efgh"))
	s.Process(raw)

	if len(got) != 1 || got[0]["StreamTitle"] != "Y" {
		t.Fatalf("metadata = %v, want StreamTitle=Y", got)
	}
	if a := s.Audio().ReadN(100); string(a) != "abcdefgh" {
		t.Errorf("audio = %q, want %q", a, "abcdefgh")
	}
}
