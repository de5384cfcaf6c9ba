package player

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

// Watermark sizing guidance (low/high watermarks, in buffered audio bytes):
// - Low: enough to cover one decode unit for any codec (the largest is an
//   ADTS frame at high bitrate, well under 8KiB).
// - High: how far ahead of playback we are willing to decode; bigger means
//   more latency on stop/track-change, smaller means more pause/resume churn.
const (
	defaultLowWatermark  = 16 * 1024
	defaultHighWatermark = 128 * 1024
	defaultTickInterval  = 50 * time.Millisecond
	defaultUserAgent     = "radiiu/1.0"
)

type Config struct {
	URL           string        `yaml:"url,omitempty"`            // stream to start playing at startup
	Name          string        `yaml:"name,omitempty"`           // display name for the startup stream
	LowWatermark  int           `yaml:"low-watermark,omitempty"`  // don't decode until this many audio bytes are buffered
	HighWatermark int           `yaml:"high-watermark,omitempty"` // pause the transport above this many buffered audio bytes
	TickInterval  time.Duration `yaml:"tick-interval,omitempty"`
	UserAgent     string        `yaml:"user-agent,omitempty"`
	DisableSink   bool          `yaml:"disable-sink,omitempty"` // decode but discard PCM (no audio device)
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "", "Stream URL to start playing at startup (optional)")
	f.StringVar(&cfg.Name, util.PrefixConfig(prefix, "name"), "", "Display name for the startup stream")
	f.IntVar(&cfg.LowWatermark, util.PrefixConfig(prefix, "low-watermark"), defaultLowWatermark,
		"Buffered audio bytes below which decoding waits for more data")
	f.IntVar(&cfg.HighWatermark, util.PrefixConfig(prefix, "high-watermark"), defaultHighWatermark,
		"Buffered audio bytes above which the transport is paused")
	f.DurationVar(&cfg.TickInterval, util.PrefixConfig(prefix, "tick-interval"), defaultTickInterval,
		"How often the playback loop runs")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), defaultUserAgent,
		"User-Agent header sent to stream servers")
	f.BoolVar(&cfg.DisableSink, util.PrefixConfig(prefix, "disable-sink"), false,
		"Decode but discard PCM instead of opening an audio device")
}
