package paypro

import (
	"net/http"
	"time"

	"github.com/walletstack/paypro/logger"
	"github.com/walletstack/paypro/metrics"
)

type Option func(*PayPro)

func WithLogger(l logger.Logger) Option {
	return func(p *PayPro) {
		p.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *PayPro) {
		p.metrics = r
	}
}

// WithTimeout bounds each HTTP exchange. It does not bound the flow as a
// whole: the confirmation UI may suspend indefinitely.
func WithTimeout(t time.Duration) Option {
	return func(p *PayPro) {
		p.http.Timeout = t
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *PayPro) {
		p.http = c
	}
}
