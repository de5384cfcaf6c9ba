// Package audio holds the shared types of the playback pipeline: output
// sample specs, decoder descriptions, and stream metadata.
package audio

// SampleFormat is the PCM encoding of decoded samples.
type SampleFormat int

const (
	S16 SampleFormat = iota // signed 16-bit little-endian
	U16                     // unsigned 16-bit little-endian
	S32                     // signed 32-bit little-endian
	F32                     // 32-bit float little-endian
)

func (f SampleFormat) String() string {
	switch f {
	case S16:
		return "s16"
	case U16:
		return "u16"
	case S32:
		return "s32"
	case F32:
		return "f32"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the format as its short name.
func (f SampleFormat) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.String() + `"`), nil
}

// BytesPerSample returns the width of a single sample in bytes.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case S16, U16:
		return 2
	case S32, F32:
		return 4
	default:
		return 0
	}
}

// Spec describes the PCM output format of a decoder or the input format
// of an audio sink.
type Spec struct {
	Format   SampleFormat `json:"format"`
	Rate     int          `json:"rate"`
	Channels int          `json:"channels"`
}

// DecoderInfo is a human-readable codec description, best effort.
type DecoderInfo struct {
	Codec   string `json:"codec"`
	Bitrate string `json:"bitrate,omitempty"`
}
