// Package sink abstracts the audio output device. The playback flow
// controller writes decoded PCM to a Sink; the default implementation
// is backed by oto, and tests substitute a capture sink through the
// Factory type.
package sink

import (
	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

// Sink plays interleaved PCM. Implementations buffer internally; Play
// may block briefly while the device drains but never indefinitely.
type Sink interface {
	Play(pcm []byte) error
	Unpause()
	Spec() audio.Spec
	Close() error
}

// Factory creates a sink for a decoder-reported spec. The flow
// controller calls it lazily, once the active decoder knows its output
// format.
type Factory func(spec audio.Spec) (Sink, error)
