package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks the marketplace sale paths.
type MarketMetrics struct {
	itemsSold        *prometheus.CounterVec
	offersAccepted   *prometheus.CounterVec
	bidsPlaced       *prometheus.CounterVec
	bidsRefunded     *prometheus.CounterVec
	auctionsResulted *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide marketplace metrics registry.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			itemsSold: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agora",
				Subsystem: "market",
				Name:      "items_sold_total",
				Help:      "Count of direct-sale settlements by pay currency.",
			}, []string{"currency"}),
			offersAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agora",
				Subsystem: "market",
				Name:      "offers_accepted_total",
				Help:      "Count of accepted offers by pay currency.",
			}, []string{"currency"}),
			bidsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agora",
				Subsystem: "auction",
				Name:      "bids_placed_total",
				Help:      "Count of accepted auction bids by pay currency.",
			}, []string{"currency"}),
			bidsRefunded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agora",
				Subsystem: "auction",
				Name:      "bids_refunded_total",
				Help:      "Count of outbid refunds by pay currency.",
			}, []string{"currency"}),
			auctionsResulted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agora",
				Subsystem: "auction",
				Name:      "auctions_resulted_total",
				Help:      "Count of finalized auctions by pay currency.",
			}, []string{"currency"}),
		}
		prometheus.MustRegister(
			marketRegistry.itemsSold,
			marketRegistry.offersAccepted,
			marketRegistry.bidsPlaced,
			marketRegistry.bidsRefunded,
			marketRegistry.auctionsResulted,
		)
	})
	return marketRegistry
}

// ItemSold records a direct-sale settlement.
func (m *MarketMetrics) ItemSold(currency string) {
	if m == nil {
		return
	}
	m.itemsSold.WithLabelValues(currency).Inc()
}

// OfferAccepted records an accepted offer settlement.
func (m *MarketMetrics) OfferAccepted(currency string) {
	if m == nil {
		return
	}
	m.offersAccepted.WithLabelValues(currency).Inc()
}

// BidPlaced records an accepted auction bid.
func (m *MarketMetrics) BidPlaced(currency string) {
	if m == nil {
		return
	}
	m.bidsPlaced.WithLabelValues(currency).Inc()
}

// BidRefunded records an outbid refund.
func (m *MarketMetrics) BidRefunded(currency string) {
	if m == nil {
		return
	}
	m.bidsRefunded.WithLabelValues(currency).Inc()
}

// AuctionResulted records a finalized auction.
func (m *MarketMetrics) AuctionResulted(currency string) {
	if m == nil {
		return
	}
	m.auctionsResulted.WithLabelValues(currency).Inc()
}
