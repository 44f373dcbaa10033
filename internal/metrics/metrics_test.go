package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPrediction(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues("High"))
	RecordPrediction("High", 3, time.Millisecond)
	after := testutil.ToFloat64(PredictionsTotal.WithLabelValues("High"))
	if after-before != 1 {
		t.Errorf("expected High counter to grow by 1, grew by %v", after-before)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues(http.MethodPost, "/predict", "200")
	before := testutil.ToFloat64(c)
	RecordAPIRequest(http.MethodPost, "/predict", http.StatusOK, 2*time.Millisecond)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("expected request counter to grow by 1, grew by %v", got)
	}
}
