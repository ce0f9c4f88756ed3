//go:build ffmpeg

package ffmpeg

//#cgo pkg-config: libavutil
//#include <errno.h>
//#include <libavutil/error.h>
//#include <libavutil/frame.h>
//#include <libavutil/imgutils.h>
//#include <libavutil/samplefmt.h>
//
//static int avwrap_is_video(const AVFrame *f) {
//	return f->width > 0 && f->height > 0;
//}
//
//static int avwrap_frame_size(const AVFrame *f) {
//	if (avwrap_is_video(f))
//		return av_image_get_buffer_size(f->format, f->width, f->height, 1);
//	return av_samples_get_buffer_size(NULL, f->ch_layout.nb_channels, f->nb_samples, f->format, 1);
//}
//
//static int avwrap_frame_to_buffer(const AVFrame *f, uint8_t *dst, int size) {
//	if (avwrap_is_video(f))
//		return av_image_copy_to_buffer(dst, size, (const uint8_t * const *)f->data, f->linesize,
//			f->format, f->width, f->height, 1);
//	uint8_t *planes[AV_NUM_DATA_POINTERS] = {0};
//	int linesize;
//	int ret = av_samples_fill_arrays(planes, &linesize, dst, f->ch_layout.nb_channels,
//		f->nb_samples, f->format, 1);
//	if (ret < 0)
//		return ret;
//	return av_samples_copy(planes, (uint8_t * const *)f->extended_data, 0, 0, f->nb_samples,
//		f->ch_layout.nb_channels, f->format);
//}
//
//static int avwrap_buffer_to_frame(AVFrame *f, const uint8_t *src, int size) {
//	int ret = av_frame_make_writable(f);
//	if (ret < 0)
//		return ret;
//	if (size < avwrap_frame_size(f))
//		return AVERROR(EINVAL);
//	if (avwrap_is_video(f)) {
//		uint8_t *planes[4] = {0};
//		int linesizes[4];
//		ret = av_image_fill_arrays(planes, linesizes, src, f->format, f->width, f->height, 1);
//		if (ret < 0)
//			return ret;
//		av_image_copy(f->data, f->linesize, (const uint8_t **)planes, linesizes,
//			f->format, f->width, f->height);
//		return 0;
//	}
//	uint8_t *planes[AV_NUM_DATA_POINTERS] = {0};
//	int linesize;
//	ret = av_samples_fill_arrays(planes, &linesize, src, f->ch_layout.nb_channels,
//		f->nb_samples, f->format, 1);
//	if (ret < 0)
//		return ret;
//	return av_samples_copy(f->extended_data, planes, 0, 0, f->nb_samples,
//		f->ch_layout.nb_channels, f->format);
//}
import "C"

import (
	"unsafe"

	"github.com/asticode/go-astiav"

	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// astiav exposes frame bytes for images only, so planes are packed and
// unpacked here for both images and audio.

func cFrame(f *astiav.Frame) *C.AVFrame {
	return (*C.AVFrame)(f.UnsafePointer())
}

// framePayload packs the planes of f into a payload with no padding.
func framePayload(f *astiav.Frame) (*media.Payload, engine.Code) {
	size := int(C.avwrap_frame_size(cFrame(f)))
	if size <= 0 {
		return nil, engine.Code(size)
	}
	p, err := media.AllocPayload(size)
	if err != nil {
		return nil, engine.NoMemory
	}
	b := p.Bytes()
	if ret := C.avwrap_frame_to_buffer(cFrame(f), (*C.uint8_t)(unsafe.Pointer(&b[0])), C.int(size)); ret < 0 {
		p.Release()
		return nil, engine.Code(ret)
	}
	return p, engine.OK
}

// fillFrame copies packed data into the planes of f, whose buffers must be
// allocated.
func fillFrame(f *astiav.Frame, data []byte) engine.Code {
	if len(data) == 0 {
		return engine.InvalidArgument
	}
	return engine.Code(C.avwrap_buffer_to_frame(cFrame(f), (*C.uint8_t)(unsafe.Pointer(&data[0])), C.int(len(data))))
}

var sampleFormats = map[string]astiav.SampleFormat{}

func init() {
	for _, f := range []astiav.SampleFormat{
		astiav.SampleFormatU8, astiav.SampleFormatS16, astiav.SampleFormatS32,
		astiav.SampleFormatS64, astiav.SampleFormatFlt, astiav.SampleFormatDbl,
		astiav.SampleFormatU8P, astiav.SampleFormatS16P, astiav.SampleFormatS32P,
		astiav.SampleFormatS64P, astiav.SampleFormatFltp, astiav.SampleFormatDblp,
	} {
		sampleFormats[f.Name()] = f
	}
}

// sampleFormat resolves a libavutil sample format name such as "fltp".
func sampleFormat(name string) astiav.SampleFormat {
	if f, ok := sampleFormats[name]; ok {
		return f
	}
	return astiav.SampleFormatNone
}
