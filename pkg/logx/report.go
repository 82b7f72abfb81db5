package logx

import (
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// reporter prints logx's own problems (failed sink writes, bad events) to
// stderr. Bursts are limited so a full disk cannot flood the console.
type reporter struct {
	w   io.Writer
	lim *rate.Limiter
}

func newReporter(w io.Writer) *reporter {
	return &reporter{w: w, lim: rate.NewLimiter(rate.Limit(1), 1)}
}

func (r *reporter) printf(format string, args ...any) {
	if r == nil || r.w == nil || !r.lim.Allow() {
		return
	}
	fmt.Fprintf(r.w, "logx: "+format+"\n", args...)
}
