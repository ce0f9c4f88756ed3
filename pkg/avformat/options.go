package avformat

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Option configures a Source or Sink.
type Option func(*config)

type config struct {
	logger logrus.FieldLogger
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
