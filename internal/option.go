package internal

import (
	"io"
	"net"

	"github.com/starford/ter/internal/watch"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	rebuilder watch.Rebuilder
	listener  net.Listener
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRebuilder replaces the default site builder as the action run on every
// accepted change.
func WithRebuilder(r watch.Rebuilder) Option {
	return func(a *application) {
		a.rebuilder = r
	}
}

// WithListener serves HTTP on l instead of listening on the configured port.
func WithListener(l net.Listener) Option {
	return func(a *application) {
		a.listener = l
	}
}

// WithLogOutput redirects the application log. Defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
