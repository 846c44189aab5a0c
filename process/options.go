package process

import (
	"fmt"
	"strings"

	"github.com/Moonlight-Companies/gologger/logger"
)

const DefaultProcRoot = "/proc"

// Options configures process discovery and snapshots
type Options struct {
	ProcRoot string
	Log      *logger.Logger
}

// Option is a function that configures Options
type Option func(*Options)

// WithProcRoot points discovery at a different process pseudo-filesystem mount
func WithProcRoot(root string) Option {
	return func(o *Options) {
		o.ProcRoot = root
	}
}

// WithLogger enables informational logging. Without it nothing is logged.
func WithLogger(l *logger.Logger) Option {
	return func(o *Options) {
		o.Log = l
	}
}

// NewOptions applies opts over the defaults
func NewOptions(opts ...Option) Options {
	o := Options{
		ProcRoot: DefaultProcRoot,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) Infoln(args ...interface{}) {
	if o.Log != nil {
		o.Log.Infoln(line(args...))
	}
}

func (o Options) Debugln(args ...interface{}) {
	if o.Log != nil {
		o.Log.Debugln(line(args...))
	}
}

func line(args ...interface{}) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}
