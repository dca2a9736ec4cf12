package repository

import "github.com/okian/weekgrid/pkg/logger"

type options struct {
	logger logger.Logger
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithLogger sets the logger used by a store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: logger.Default().Named("repository")}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
