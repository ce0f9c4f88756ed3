package rtpdump

import (
	"strconv"
	"strings"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/media"
)

// codecInfo is what a payload type tells about a stream.
type codecInfo struct {
	name     string
	typ      media.ContentType
	clock    int
	channels int
}

// firstDynamicPT is the first payload type of the dynamic range (RFC 3551).
const firstDynamicPT = 96

var staticTypes = map[uint8]codecInfo{
	0:  {"pcm_mulaw", media.ContentAudio, 8000, 1},
	3:  {"gsm", media.ContentAudio, 8000, 1},
	8:  {"pcm_alaw", media.ContentAudio, 8000, 1},
	9:  {"g722", media.ContentAudio, 8000, 1},
	10: {"l16", media.ContentAudio, 44100, 2},
	11: {"l16", media.ContentAudio, 44100, 1},
	14: {"mp3", media.ContentAudio, 90000, 0},
	26: {"mjpeg", media.ContentVideo, 90000, 0},
	33: {"mp2t", media.ContentData, 90000, 0},
}

// knownCodecs are the defaults for codecs carried on dynamic payload types.
var knownCodecs = map[string]codecInfo{
	"h264":      {"h264", media.ContentVideo, 90000, 0},
	"hevc":      {"hevc", media.ContentVideo, 90000, 0},
	"av1":       {"av1", media.ContentVideo, 90000, 0},
	"vp8":       {"vp8", media.ContentVideo, 90000, 0},
	"vp9":       {"vp9", media.ContentVideo, 90000, 0},
	"jpegxs":    {"jpegxs", media.ContentVideo, 90000, 0},
	"rawvideo":  {"rawvideo", media.ContentVideo, 90000, 0},
	"opus":      {"opus", media.ContentAudio, 48000, 2},
	"aac":       {"aac", media.ContentAudio, 48000, 2},
	"pcm_s16be": {"l16", media.ContentAudio, 48000, 2},
	"pcm_s16le": {"l16", media.ContentAudio, 48000, 2},
}

// aliases maps SDP encoding names to codec names.
var aliases = map[string]string{
	"h265":          "hevc",
	"mpeg4-generic": "aac",
	"pcmu":          "pcm_mulaw",
	"pcma":          "pcm_alaw",
	"jxsv":          "jpegxs",
	"raw":           "rawvideo",
}

func lookupCodec(name string) (codecInfo, bool) {
	name = strings.ToLower(name)
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	if c, ok := knownCodecs[name]; ok {
		return c, true
	}
	for _, c := range staticTypes {
		if c.name == name {
			return c, true
		}
	}
	return codecInfo{}, false
}

// parseRTPMap parses "96=h264/90000,97=opus/48000/2", the SDP a=rtpmap
// fields joined by commas.
func parseRTPMap(s string) (map[uint8]codecInfo, error) {
	out := make(map[uint8]codecInfo)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, entry := range strings.Split(s, ",") {
		ptStr, desc, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			return nil, averr.InvalidArgument("rtpdump.rtpmap", "malformed entry %q", entry)
		}
		pt, err := strconv.ParseUint(ptStr, 10, 7)
		if err != nil {
			return nil, averr.InvalidArgument("rtpdump.rtpmap", "bad payload type %q", ptStr)
		}

		parts := strings.Split(desc, "/")
		c, ok := lookupCodec(parts[0])
		if !ok {
			c = codecInfo{name: strings.ToLower(parts[0]), typ: media.ContentData, clock: 90000}
		}
		if len(parts) > 1 {
			clock, err := strconv.Atoi(parts[1])
			if err != nil || clock <= 0 {
				return nil, averr.InvalidArgument("rtpdump.rtpmap", "bad clock rate in %q", entry)
			}
			c.clock = clock
		}
		if len(parts) > 2 {
			ch, err := strconv.Atoi(parts[2])
			if err != nil || ch <= 0 {
				return nil, averr.InvalidArgument("rtpdump.rtpmap", "bad channel count in %q", entry)
			}
			c.channels = ch
		}
		out[uint8(pt)] = c
	}
	return out, nil
}

// codecFor resolves a received payload type.
func codecFor(pt uint8, rtpmap map[uint8]codecInfo) codecInfo {
	if c, ok := rtpmap[pt]; ok {
		return c
	}
	if c, ok := staticTypes[pt]; ok {
		return c
	}
	return codecInfo{name: "unknown", typ: media.ContentData, clock: 90000}
}

// payloadTypeFor picks the payload type for an output stream. Codecs without
// a static assignment get dynamic types in stream order.
func payloadTypeFor(name string, dynamic int) uint8 {
	c, ok := lookupCodec(name)
	if ok {
		for pt, s := range staticTypes {
			if s.name == c.name && c.name != "l16" {
				return pt
			}
		}
	}
	return uint8(firstDynamicPT + dynamic%32)
}
