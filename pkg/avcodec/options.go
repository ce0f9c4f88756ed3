package avcodec

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/media"
)

// Option configures a Decoder or Encoder.
type Option func(*config)

type config struct {
	logger  logrus.FieldLogger
	options media.Options
}

// WithLogger sets the logger diagnostics are written to. By default nothing
// is logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOptions passes an option dictionary to the engine's open call.
func WithOptions(o media.Options) Option {
	return func(c *config) {
		c.options = o
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}
	return c
}
