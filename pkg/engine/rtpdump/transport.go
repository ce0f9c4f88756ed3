package rtpdump

import (
	"io"
	"net"
	"net/url"
	"os"
	"time"

	srt "github.com/datarhei/gosrt"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/media"
)

const defaultDialTimeout = 5 * time.Second

// dial opens the byte stream behind uri. Plain paths and file:// are local
// files; tcp://host:port and srt://host:port?streamid=x connect as a client.
func dial(uri string, write bool, opts media.Options) (io.ReadWriteCloser, error) {
	const op = "rtpdump.dial"
	u, err := url.Parse(uri)
	if err != nil {
		return nil, averr.InvalidArgument(op, "bad uri %q: %v", uri, err)
	}
	timeout := time.Duration(opts.Int("timeout_ms", defaultDialTimeout.Milliseconds())) * time.Millisecond

	switch u.Scheme {
	case "", "file":
		path := u.Path
		if u.Scheme == "" {
			path = uri
		}
		if write {
			f, err := os.Create(path)
			if err != nil {
				return nil, averr.Wrap(err, averr.KindIO, op, "cannot create "+path)
			}
			return f, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, averr.Wrap(err, averr.KindIO, op, "cannot open "+path)
		}
		return f, nil

	case "tcp":
		conn, err := net.DialTimeout("tcp", u.Host, timeout)
		if err != nil {
			return nil, averr.Wrap(err, averr.KindIO, op, "cannot connect to "+u.Host)
		}
		return conn, nil

	case "srt":
		cfg := srt.DefaultConfig()
		cfg.ConnectionTimeout = timeout
		if sid := u.Query().Get("streamid"); sid != "" {
			cfg.StreamId = sid
		}
		if lat := opts.Int("latency_ms", 0); lat > 0 {
			cfg.ReceiverLatency = time.Duration(lat) * time.Millisecond
			cfg.PeerLatency = cfg.ReceiverLatency
		}
		if pass := opts.Text("passphrase", ""); pass != "" {
			cfg.Passphrase = pass
		}
		conn, err := srt.Dial("srt", u.Host, cfg)
		if err != nil {
			return nil, averr.Wrap(err, averr.KindIO, op, "cannot connect to "+u.Host)
		}
		return conn, nil

	default:
		return nil, averr.InvalidArgument(op, "unsupported scheme %q", u.Scheme)
	}
}
