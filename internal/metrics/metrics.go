// Package metrics holds the Prometheus collectors of the shop.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/videoshop/core/logger"
	"github.com/m3rciful/videoshop/internal/store"
)

// Metrics stores Prometheus collectors used across the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Updates          *prometheus.CounterVec
	Invoices         prometheus.Counter
	PreCheckout      *prometheus.CounterVec
	Purchases        prometheus.Counter
	Revenue          prometheus.Counter
	RecordFailures   prometheus.Counter
	DeliveryFailures prometheus.Counter
	WizardCommits    *prometheus.CounterVec
	Broadcasts       *prometheus.CounterVec
	OutboundSends    *prometheus.CounterVec
	StoreSave        *prometheus.HistogramVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tg_updates_total",
			Help:      "Inbound Telegram updates by kind.",
		}, []string{"kind"}),
		Invoices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_sent_total",
			Help:      "Invoices presented to buyers.",
		}),
		PreCheckout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pre_checkout_total",
			Help:      "Pre-checkout decisions by result.",
		}, []string{"result"}),
		Purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Purchases recorded.",
		}),
		Revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_stars_total",
			Help:      "Stars captured by recorded purchases.",
		}),
		RecordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_record_failures_total",
			Help:      "Paid purchases the store failed to record.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Deliveries that did not send an asset.",
		}),
		WizardCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_commits_total",
			Help:      "Completed admin wizards by kind and status.",
		}, []string{"wizard", "status"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Broadcast deliveries by status.",
		}, []string{"status"}),
		OutboundSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tg_outbound_total",
			Help:      "Outbound Telegram calls by action and status.",
		}, []string{"action", "status"}),
		StoreSave: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_save_duration_seconds",
			Help:      "Latency of store snapshot writes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Updates, m.Invoices, m.PreCheckout, m.Purchases, m.Revenue,
			m.RecordFailures, m.DeliveryFailures, m.WizardCommits,
			m.Broadcasts, m.OutboundSends, m.StoreSave,
		)
	}
	return m
}

// Update counts an inbound update.
func (m *Metrics) Update(kind string) {
	if m != nil {
		m.Updates.WithLabelValues(kind).Inc()
	}
}

// InvoiceSent counts a presented invoice.
func (m *Metrics) InvoiceSent() {
	if m != nil {
		m.Invoices.Inc()
	}
}

// PreCheckoutResult counts a pre-checkout decision; result is "ok" or a rejection code.
func (m *Metrics) PreCheckoutResult(result string) {
	if m != nil {
		m.PreCheckout.WithLabelValues(result).Inc()
	}
}

// PurchaseRecorded counts a recorded purchase and its captured amount.
func (m *Metrics) PurchaseRecorded(amount int64) {
	if m == nil {
		return
	}
	m.Purchases.Inc()
	if amount > 0 {
		m.Revenue.Add(float64(amount))
	}
}

// RecordFailed counts a paid purchase that was not recorded.
func (m *Metrics) RecordFailed() {
	if m != nil {
		m.RecordFailures.Inc()
	}
}

// DeliveryFailed counts a failed delivery.
func (m *Metrics) DeliveryFailed() {
	if m != nil {
		m.DeliveryFailures.Inc()
	}
}

// WizardCommitted counts a finished wizard.
func (m *Metrics) WizardCommitted(wizard string, err error) {
	if m != nil {
		m.WizardCommits.WithLabelValues(wizard, logger.Status(err)).Inc()
	}
}

// BroadcastSent counts one broadcast delivery.
func (m *Metrics) BroadcastSent(err error) {
	if m != nil {
		m.Broadcasts.WithLabelValues(logger.Status(err)).Inc()
	}
}

// ObserveSend matches the sender dispatcher's Observe hook.
func (m *Metrics) ObserveSend(action string, err error) {
	if m != nil {
		m.OutboundSends.WithLabelValues(action, logger.Status(err)).Inc()
	}
}

type timedPersister struct {
	store.Persister
	m *Metrics
}

// Save records the write latency.
func (p timedPersister) Save(ctx context.Context, snap *store.Snapshot) error {
	start := time.Now()
	err := p.Persister.Save(ctx, snap)
	p.m.StoreSave.WithLabelValues(logger.Status(err)).Observe(time.Since(start).Seconds())
	return err
}

// InstrumentPersister wraps p so every snapshot write is timed.
func (m *Metrics) InstrumentPersister(p store.Persister) store.Persister {
	if m == nil || p == nil {
		return p
	}
	return timedPersister{Persister: p, m: m}
}
