package avformat

import (
	"errors"

	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// memEngine serves a fixed list of packets and records what is written.
type memEngine struct {
	info    *media.MediaInfo
	reads   []engine.RawPacket
	codes   []engine.Code // returned instead of a packet while non-empty
	probed  int
	opened  int
	openErr error

	out *memOutput
}

func (e *memEngine) Name() string                     { return "mem" }
func (e *memEngine) Formats() []string                { return []string{"mem"} }
func (e *memEngine) Describe(code engine.Code) string { return "mem: " + code.String() }

func (e *memEngine) OpenInput(string, media.Options) (engine.InputContext, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	e.opened++
	return &memInput{e: e}, nil
}

func (e *memEngine) OpenOutput(string, string, media.Options) (engine.OutputContext, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	if e.out == nil {
		e.out = &memOutput{}
	}
	return e.out, nil
}

type memInput struct {
	e      *memEngine
	closed bool
}

func (in *memInput) Probe() (*media.MediaInfo, error) {
	in.e.probed++
	if in.e.info == nil {
		return nil, errors.New("no streams")
	}
	return in.e.info, nil
}

func (in *memInput) Read(pkt *engine.RawPacket) engine.Code {
	if len(in.e.codes) > 0 {
		code := in.e.codes[0]
		in.e.codes = in.e.codes[1:]
		return code
	}
	if len(in.e.reads) == 0 {
		return engine.EOF
	}
	*pkt = in.e.reads[0]
	in.e.reads = in.e.reads[1:]
	return engine.OK
}

// BestStream reports audio and data for every stream of type audio, to
// exercise first-match classification.
func (in *memInput) BestStream(t media.ContentType, wanted int) int {
	st, ok := in.e.info.Streams[wanted]
	if !ok {
		return int(engine.StreamNotFound)
	}
	if st.Type == t || (st.Type == media.ContentAudio && t == media.ContentData) {
		return wanted
	}
	return int(engine.StreamNotFound)
}

func (in *memInput) Close() error {
	in.closed = true
	return nil
}

type written struct {
	stream int
	pts    int64
	dts    int64
	dur    int64
	data   []byte
}

type memOutput struct {
	streams   []media.StreamInfo
	tbs       map[int]avtime.Timebase
	addErr    error
	headerErr engine.Code
	writeErr  engine.Code
	header    bool
	trailer   bool
	closed    bool
	packets   []written
}

func (o *memOutput) AddStream(info media.StreamInfo) (int, error) {
	if o.addErr != nil {
		return 0, o.addErr
	}
	o.streams = append(o.streams, info)
	return len(o.streams) - 1, nil
}

func (o *memOutput) StreamTimebase(i int) (avtime.Timebase, bool) {
	tb, ok := o.tbs[i]
	return tb, ok
}

func (o *memOutput) WriteHeader(media.Options) engine.Code {
	if o.headerErr < 0 {
		return o.headerErr
	}
	o.header = true
	return engine.OK
}

func (o *memOutput) Write(pkt *engine.RawPacket) engine.Code {
	if o.writeErr < 0 {
		return o.writeErr
	}
	o.packets = append(o.packets, written{
		stream: pkt.StreamIndex,
		pts:    pkt.Pts,
		dts:    pkt.Dts,
		dur:    pkt.Duration,
		data:   append([]byte(nil), pkt.Payload.Bytes()...),
	})
	return engine.OK
}

func (o *memOutput) WriteTrailer() engine.Code {
	o.trailer = true
	return engine.OK
}

func (o *memOutput) Close() error {
	o.closed = true
	return nil
}
