package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStorefrontMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewStorefrontMetrics(reg)

	metrics.IncOrderCreated("online")
	metrics.IncOrderTransition("pending", "confirmed")
	metrics.ObserveCheckoutDuration(120 * time.Millisecond)
	metrics.IncStockDebitFailure()
	metrics.IncOutboxPublished("ok")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orders_created_total", "payment_method", "online"); err != nil {
		t.Fatalf("fetch orders created: %v", err)
	} else if got != 1 {
		t.Fatalf("expected orders_created_total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "order_transitions_total", "to", "confirmed"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected order_transitions_total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "outbox_published_total", "result", "ok"); err != nil {
		t.Fatalf("fetch outbox published: %v", err)
	} else if got != 1 {
		t.Fatalf("expected outbox_published_total=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "stock_debit_failures_total")
	if mf == nil {
		t.Fatal("stock_debit_failures_total not found")
	}
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected stock_debit_failures_total=1, got %f", got)
	}

	hist := findMetricFamily(mfs, "checkout_duration_seconds")
	if hist == nil {
		t.Fatal("checkout_duration_seconds not found")
	}
	if sum := hist.GetMetric()[0].GetHistogram().GetSampleSum(); sum <= 0 {
		t.Fatalf("expected checkout duration sum > 0, got %f", sum)
	}
}

func TestStorefrontMetricsNilRegisterer(t *testing.T) {
	metrics := NewStorefrontMetrics(nil)
	// all recorders should be safe no-ops
	metrics.IncOrderCreated("cod")
	metrics.IncOrderTransition("pending", "cancelled")
	metrics.ObserveCheckoutDuration(time.Second)
	metrics.IncStockDebitFailure()
	metrics.IncStockCreditFailure()
	metrics.IncOutboxPublished("error")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
