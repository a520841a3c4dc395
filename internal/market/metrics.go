package market

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftmarket_operations_total",
		Help: "Marketplace operations by name and result.",
	}, []string{"op", "result"})

	salesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftmarket_sales_total",
		Help: "Settled sales.",
	})

	saleVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftmarket_sale_volume",
		Help: "Gross settled volume in the settlement currency.",
	})

	feeVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftmarket_fee_volume",
		Help: "Collected fees in the settlement currency.",
	})
)
