package sink

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hajimehoshi/oto"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

// deviceBufferSeconds sizes the device-side buffer; large enough to
// ride out scheduling hiccups, small enough to keep stop latency low.
const deviceBufferSeconds = 0.5

type otoSink struct {
	spec   audio.Spec
	ctx    *oto.Context
	player *oto.Player
}

// New opens the audio device for the given spec. The device itself
// runs 16-bit signed; wider or float input is converted on Play.
func New(spec audio.Spec) (Sink, error) {
	if spec.Rate <= 0 || spec.Channels <= 0 {
		return nil, fmt.Errorf("sink: invalid spec %+v", spec)
	}

	bufSize := int(float64(spec.Rate*spec.Channels*2) * deviceBufferSeconds)
	ctx, err := oto.NewContext(spec.Rate, spec.Channels, 2, bufSize)
	if err != nil {
		return nil, fmt.Errorf("sink: open device: %w", err)
	}

	return &otoSink{
		spec:   spec,
		ctx:    ctx,
		player: ctx.NewPlayer(),
	}, nil
}

func (s *otoSink) Play(pcm []byte) error {
	converted, err := toS16(pcm, s.spec.Format)
	if err != nil {
		return err
	}
	if _, err := s.player.Write(converted); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	return nil
}

func (s *otoSink) Unpause() {
	// The device plays whatever is written; nothing is held back.
}

func (s *otoSink) Spec() audio.Spec {
	return s.spec
}

func (s *otoSink) Close() error {
	if err := s.player.Close(); err != nil {
		return err
	}
	return s.ctx.Close()
}

// toS16 converts PCM in the given format to signed 16-bit
// little-endian, which is what the device consumes.
func toS16(pcm []byte, format audio.SampleFormat) ([]byte, error) {
	switch format {
	case audio.S16:
		return pcm, nil

	case audio.U16:
		out := make([]byte, len(pcm))
		for i := 0; i+1 < len(pcm); i += 2 {
			v := binary.LittleEndian.Uint16(pcm[i:])
			binary.LittleEndian.PutUint16(out[i:], v^0x8000)
		}
		return out, nil

	case audio.S32:
		out := make([]byte, len(pcm)/2)
		for i := 0; i+3 < len(pcm); i += 4 {
			v := int32(binary.LittleEndian.Uint32(pcm[i:]))
			binary.LittleEndian.PutUint16(out[i/2:], uint16(int16(v>>16)))
		}
		return out, nil

	case audio.F32:
		out := make([]byte, len(pcm)/2)
		for i := 0; i+3 < len(pcm); i += 4 {
			f := math.Float32frombits(binary.LittleEndian.Uint32(pcm[i:]))
			scaled := float64(f) * 32768.0
			if scaled > 32767.0 {
				scaled = 32767.0
			}
			if scaled < -32768.0 {
				scaled = -32768.0
			}
			binary.LittleEndian.PutUint16(out[i/2:], uint16(int16(scaled)))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("sink: unsupported sample format %v", format)
	}
}
