package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/videoshop/internal/store"
)

type stubPersister struct{ err error }

func (stubPersister) Load(context.Context) (*store.Snapshot, error) { return store.NewSnapshot(), nil }
func (s stubPersister) Save(context.Context, *store.Snapshot) error  { return s.err }

func TestCountersRegisterAndCount(t *testing.T) {
	m := New(prometheus.NewRegistry(), "videoshop")

	m.PurchaseRecorded(25)
	m.PurchaseRecorded(0)
	m.PreCheckoutResult("ALREADY_OWNED")
	m.ObserveSend("send.text", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Purchases))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.Revenue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreCheckout.WithLabelValues("ALREADY_OWNED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundSends.WithLabelValues("send.text", "fail")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.InvoiceSent()
	m.DeliveryFailed()
	m.WizardCommitted("add_item", nil)
	p := stubPersister{}
	assert.Equal(t, store.Persister(p), m.InstrumentPersister(p))
}

func TestInstrumentPersisterObservesSaves(t *testing.T) {
	m := New(prometheus.NewRegistry(), "")
	p := m.InstrumentPersister(stubPersister{err: errors.New("disk full")})

	require.Error(t, p.Save(context.Background(), store.NewSnapshot()))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StoreSave))
}
