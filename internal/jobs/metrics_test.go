package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerRecordsSuccessAndFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if err := metrics.Track("registry_sync").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantErr := errors.New("boom")
	if err := metrics.Track("registry_sync").End(wantErr); !errors.Is(err, wantErr) {
		t.Fatalf("expected error passthrough, got %v", err)
	}

	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("registry_sync", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("registry_sync", "failure")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.failures.WithLabelValues("registry_sync")); got != 1 {
		t.Fatalf("expected 1 recorded failure, got %v", got)
	}
}

func TestNilMetricsTrackerIsSafe(t *testing.T) {
	var metrics *Metrics
	if err := metrics.Track("whatever").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics.AddInvoices("saved", 3)
}

func TestAddInvoicesIgnoresNonPositive(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AddInvoices("saved", 0)
	metrics.AddInvoices("saved", -2)
	metrics.AddInvoices("saved", 4)

	if got := testutil.ToFloat64(metrics.invoices.WithLabelValues("saved")); got != 4 {
		t.Fatalf("expected 4 saved invoices, got %v", got)
	}
}
