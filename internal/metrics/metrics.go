package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Market engine
	MarketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "truthpool_markets_created_total",
			Help: "Total number of markets created",
		},
	)

	BetsPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_bets_total",
			Help: "Total number of bet attempts",
		},
		[]string{"side", "status"}, // yes/no, success/closed/insufficient_funds/...
	)

	StakeVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_stake_volume_total",
			Help: "Total stake accepted, in ledger units",
		},
		[]string{"side"},
	)

	MarketsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_markets_resolved_total",
			Help: "Total number of markets resolved",
		},
		[]string{"outcome"},
	)

	Claims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_claims_total",
			Help: "Total number of claim attempts",
		},
		[]string{"status"}, // paid/refund/already_claimed/nothing/...
	)

	PayoutVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "truthpool_payout_volume_total",
			Help: "Total paid out of market pools, in ledger units",
		},
	)

	// Submission registry
	Submissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "truthpool_submissions_total",
			Help: "Total number of whistleblower submissions stored",
		},
	)

	Reveals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_reveals_total",
			Help: "Total number of reveal attempts",
		},
		[]string{"status"}, // revealed/already_revealed/unauthorized
	)

	DecryptDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_decrypt_denials_total",
			Help: "Total number of decrypt requests refused",
		},
		[]string{"reason"}, // unauthorized/not_revealed/escrow_unavailable
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "truthpool_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method"},
	)

	// Event relay
	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthpool_events_relayed_total",
			Help: "Total number of bus events handled by the relay",
		},
		[]string{"type", "status"},
	)
)

// RecordBet records the outcome of a placeBet call.
func RecordBet(side string, amount uint64, err error) {
	if err != nil {
		BetsPlaced.WithLabelValues(side, StatusOf(err)).Inc()
		return
	}
	BetsPlaced.WithLabelValues(side, "success").Inc()
	StakeVolume.WithLabelValues(side).Add(float64(amount))
}

// RecordClaim records the outcome of a claim.
func RecordClaim(payout uint64, refund bool, err error) {
	switch {
	case err != nil:
		Claims.WithLabelValues(StatusOf(err)).Inc()
	case refund:
		Claims.WithLabelValues("refund").Inc()
		PayoutVolume.Add(float64(payout))
	default:
		Claims.WithLabelValues("paid").Inc()
		PayoutVolume.Add(float64(payout))
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, statusClass(code)).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
