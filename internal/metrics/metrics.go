package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vtumart_purchases_total",
		Help: "Purchases by kind and terminal (or ambiguous) status",
	}, []string{"kind", "status"})

	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vtumart_provider_requests_total",
		Help: "Provider API calls by operation and outcome code",
	}, []string{"op", "code"})

	WalletPollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vtumart_wallet_poll_failures_total",
		Help: "Failed wallet reconciliation fetches",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
