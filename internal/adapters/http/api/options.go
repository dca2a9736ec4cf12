package api

import "github.com/okian/weekgrid/pkg/logger"

// Option configures a Server.
type Option func(*options)

type options struct {
	logger logger.Logger
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Default().Named("api")
	}
	return o
}
