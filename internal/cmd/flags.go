package cmd

import (
	"time"

	"github.com/caarlos0/duration"
)

// durationFlag is a pflag.Value accepting day and week units on top of the
// time.ParseDuration syntax, e.g. "2d" or "1w3h".
type durationFlag time.Duration

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}
