package pipeline

import (
	"context"
	"errors"

	"github.com/zsiec/avwrap/pkg/media"
)

// remux copies the selected streams packet by packet.
func (p *Pipeline) remux(ctx context.Context) (err error) {
	src, info, err := p.openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := p.openSink(info)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sink.Close())
	}()

	pkt := media.NewPacket()
	defer pkt.Clear()

	for {
		ok, err := p.next(ctx, src, pkt)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		err = p.write(ctx, sink, pkt)
		pkt.Clear()
		if err != nil {
			return err
		}
	}
}
