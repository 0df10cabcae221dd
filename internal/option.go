package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logWriter io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogWriter sends logs to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(a *application) {
		a.logWriter = w
	}
}
