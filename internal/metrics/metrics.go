// Package metrics wires the resolver/transport packages to
// Prometheus without making them depend on it directly: each accepts an
// optional *Recorder (nil-safe) and calls its methods, keeping the core
// library free of the dependency per its "never owns an event loop"
// contract — only a Recorder, not a registry or an HTTP server, crosses
// into those packages.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder records resolver activity as Prometheus metrics. Every method
// is safe to call on a nil *Recorder (it becomes a no-op), so packages
// can accept one unconditionally instead of branching on whether
// metrics are enabled.
type Recorder struct {
	packetsSent       prometheus.Counter
	packetsReceived   prometheus.Counter
	permutorCycles    prometheus.Counter
	tcpFallbacks      prometheus.Counter
	verifyFailures    prometheus.Counter
	resolverFrameMax  prometheus.Gauge
	resolverDone      *prometheus.CounterVec
	rateLimited       prometheus.Counter
}

// NewRecorder builds a Recorder and registers its collectors with reg.
// Passing nil for reg skips registration (useful in tests).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dnsresolve",
			Name:      "packets_sent_total",
			Help:      "DNS query packets sent by the transport FSM.",
		}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dnsresolve",
			Name:      "packets_received_total",
			Help:      "Verified DNS response packets received.",
		}),
		permutorCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dnsresolve",
			Name:      "permutor_cycles_total",
			Help:      "Transaction IDs drawn from the Feistel permutor.",
		}),
		tcpFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dnsresolve",
			Name:      "tcp_fallbacks_total",
			Help:      "Queries that fell back from UDP to TCP after a truncated response.",
		}),
		verifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dnsresolve",
			Name:      "verify_failures_total",
			Help:      "UDP responses discarded for failing transaction verification.",
		}),
		resolverFrameMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dnsresolve",
			Name:      "resolver_frame_depth",
			Help:      "Current resolver frame stack depth.",
		}),
		resolverDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dnsresolve",
			Name:      "resolver_done_total",
			Help:      "Resolver completions by terminal state (DONE/SERVFAIL).",
		}, []string{"state"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dnsresolve",
			Name:      "rate_limited_total",
			Help:      "Outgoing queries withheld by the per-nameserver rate limiter.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			r.packetsSent, r.packetsReceived, r.permutorCycles,
			r.tcpFallbacks, r.verifyFailures, r.resolverFrameMax,
			r.resolverDone, r.rateLimited,
		)
	}
	return r
}

func (r *Recorder) PacketSent() {
	if r != nil {
		r.packetsSent.Inc()
	}
}

func (r *Recorder) PacketReceived() {
	if r != nil {
		r.packetsReceived.Inc()
	}
}

func (r *Recorder) PermutorCycle() {
	if r != nil {
		r.permutorCycles.Inc()
	}
}

func (r *Recorder) TCPFallback() {
	if r != nil {
		r.tcpFallbacks.Inc()
	}
}

func (r *Recorder) VerifyFailure() {
	if r != nil {
		r.verifyFailures.Inc()
	}
}

func (r *Recorder) ResolverFrameDepth(depth int) {
	if r != nil {
		r.resolverFrameMax.Set(float64(depth))
	}
}

func (r *Recorder) ResolverDone(state string) {
	if r != nil {
		r.resolverDone.WithLabelValues(state).Inc()
	}
}

func (r *Recorder) RateLimited() {
	if r != nil {
		r.rateLimited.Inc()
	}
}
