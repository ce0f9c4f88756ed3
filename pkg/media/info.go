package media

import (
	"slices"
	"time"

	"github.com/zsiec/avwrap/pkg/avtime"
)

// VideoInfo describes a video stream.
type VideoInfo struct {
	Width             int             `json:"width"`
	Height            int             `json:"height"`
	PixelFormat       string          `json:"pixel_format,omitempty"`
	AverageFrameRate  avtime.Rational `json:"average_frame_rate"`
	FrameCount        int64           `json:"frame_count,omitempty"`
	SampleAspectRatio avtime.Rational `json:"sample_aspect_ratio"`
}

// AudioInfo describes an audio stream.
type AudioInfo struct {
	SampleRate   int    `json:"sample_rate"`
	Channels     int    `json:"channels"`
	SampleFormat string `json:"sample_format,omitempty"`
	FrameSize    int    `json:"frame_size,omitempty"`
}

// StreamInfo describes one elementary stream of a container.
type StreamInfo struct {
	Index     int               `json:"index"`
	Type      ContentType       `json:"type"`
	CodecID   int               `json:"codec_id"`
	CodecName string            `json:"codec_name"`
	Timebase  avtime.Timebase   `json:"timebase"`
	Duration  int64             `json:"duration"`   // in Timebase ticks
	StartTime int64             `json:"start_time"` // in Timebase ticks
	Bitrate   int64             `json:"bitrate,omitempty"`
	Profile   int               `json:"profile,omitempty"`
	Level     int               `json:"level,omitempty"`
	CodecTag  uint32            `json:"codec_tag,omitempty"`
	ExtraData []byte            `json:"extra_data,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	Video *VideoInfo `json:"video,omitempty"`
	Audio *AudioInfo `json:"audio,omitempty"`
}

// DurationSeconds returns the stream duration, 0 if unknown.
func (s StreamInfo) DurationSeconds() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return avtime.Native(s.Duration, s.Timebase).Seconds()
}

// MediaInfo describes an opened container.
type MediaInfo struct {
	URI            string             `json:"uri"`
	Format         string             `json:"format"`
	FormatLongName string             `json:"format_long_name,omitempty"`
	Duration       time.Duration      `json:"duration"`
	StartTime      time.Duration      `json:"start_time"`
	Bitrate        int64              `json:"bitrate,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	Streams        map[int]StreamInfo `json:"streams"`
}

// SortedStreams returns the streams ordered by index.
func (m *MediaInfo) SortedStreams() []StreamInfo {
	out := make([]StreamInfo, 0, len(m.Streams))
	for _, s := range m.Streams {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b StreamInfo) int { return a.Index - b.Index })
	return out
}

// StreamsOfType returns the streams of type t ordered by index.
func (m *MediaInfo) StreamsOfType(t ContentType) []StreamInfo {
	var out []StreamInfo
	for _, s := range m.SortedStreams() {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}
