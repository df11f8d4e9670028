package httpmw

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/keithlinneman/httpfilters/internal/log"
)

// Timing measures how long the rest of the chain takes. The clock brackets
// next.ServeHTTP only. With a non-nil L the duration is logged; observe,
// when set, receives the same duration.
func Timing(L log.Logger, observe func(*http.Request, time.Duration)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			d := time.Since(start)

			if L != nil {
				L.Info(r.Context(), TimingMessage(d),
					"http.server.request.duration", d.Seconds(),
				)
			}
			if observe != nil {
				observe(r, d)
			}
		})
	}
}

// TimingMessage is the line Timing logs for d.
func TimingMessage(d time.Duration) string {
	return "Processing the Request took: " + strconv.FormatInt(d.Nanoseconds(), 10) + " ns ~ " + FormatMillis(d) + " ms"
}

// FormatMillis renders d in milliseconds with at most three decimals and
// no trailing zeros: 1.5ms is "1.5", 2ms is "2", 1234567ns is "1.235".
// Ties round to even on whole microseconds.
func FormatMillis(d time.Duration) string {
	ns := d.Nanoseconds()
	sign := ""
	if ns < 0 {
		sign, ns = "-", -ns
	}
	us, rem := ns/1000, ns%1000
	if rem > 500 || (rem == 500 && us%2 == 1) {
		us++
	}
	whole := strconv.FormatInt(us/1000, 10)
	frac := strings.TrimRight(fmt.Sprintf("%03d", us%1000), "0")
	if frac == "" {
		if us == 0 {
			return "0"
		}
		return sign + whole
	}
	return sign + whole + "." + frac
}
