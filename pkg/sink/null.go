package sink

import (
	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
)

// Null returns a sink that discards all PCM, for headless use where
// decoding should proceed without an audio device.
func Null(spec audio.Spec) (Sink, error) {
	return &nullSink{spec: spec}, nil
}

type nullSink struct {
	spec audio.Spec
}

func (s *nullSink) Play(pcm []byte) error { return nil }
func (s *nullSink) Unpause()              {}
func (s *nullSink) Spec() audio.Spec      { return s.spec }
func (s *nullSink) Close() error          { return nil }
