package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCompile(t *testing.T) {
	before := testutil.ToFloat64(compilesTotal.WithLabelValues("no_root"))
	RecordCompile("no_root", 10*time.Millisecond)
	if got := testutil.ToFloat64(compilesTotal.WithLabelValues("no_root")); got != before+1 {
		t.Errorf("compiles_total{no_root} = %v, want %v", got, before+1)
	}
}

func TestRecordRemoteRequest(t *testing.T) {
	ok := remoteRequestsTotal.WithLabelValues("metrics_test", "success")
	failed := remoteRequestsTotal.WithLabelValues("metrics_test", "error")

	RecordRemoteRequest("metrics_test", time.Millisecond, true)
	RecordRemoteRequest("metrics_test", time.Millisecond, false)
	RecordRemoteRequest("metrics_test", time.Millisecond, false)

	if got := testutil.ToFloat64(ok); got != 1 {
		t.Errorf("success = %v", got)
	}
	if got := testutil.ToFloat64(failed); got != 2 {
		t.Errorf("error = %v", got)
	}
}

func TestRecordDiagnosticsAndGauge(t *testing.T) {
	errBefore := testutil.ToFloat64(diagnosticsTotal.WithLabelValues("error"))
	warnBefore := testutil.ToFloat64(diagnosticsTotal.WithLabelValues("warning"))

	RecordDiagnostics(2, 3)
	SetEnumeratedFiles(42)

	if got := testutil.ToFloat64(diagnosticsTotal.WithLabelValues("error")); got != errBefore+2 {
		t.Errorf("errors = %v", got)
	}
	if got := testutil.ToFloat64(diagnosticsTotal.WithLabelValues("warning")); got != warnBefore+3 {
		t.Errorf("warnings = %v", got)
	}
	if got := testutil.ToFloat64(enumeratedFiles); got != 42 {
		t.Errorf("enumerated files = %v", got)
	}
}

func TestHandler(t *testing.T) {
	RecordStateTransition("compiling")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `texforge_state_transitions_total{state="compiling"}`) {
		t.Error("state transition counter missing from exposition")
	}
}
