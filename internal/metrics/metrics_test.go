package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	// Every recording method must be a no-op on a nil collector.
	c.EventAppended("charge")
	c.AppendRejected("VALIDATION")
	c.AppendRetried()
	c.ReconcileOutcome("ok")
	c.OpportunitiesFound(3)
	c.AlertRaised("WARNING")
	c.ObserveFold(0.002)
}

func TestHandlerExposesCounters(t *testing.T) {
	c := NewCollector()
	c.EventAppended("charge")
	c.EventAppended("charge")
	c.EventAppended("payment")
	c.AlertRaised("CRITICAL")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`dw_events_appended_total{kind="charge"} 2`,
		`dw_events_appended_total{kind="payment"} 1`,
		`dw_alerts_raised_total{severity="CRITICAL"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.EventAppended("charge")

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), `dw_events_appended_total{kind="charge"} 1`) {
		t.Error("collector b observed a's counter; registries must be private")
	}
}
