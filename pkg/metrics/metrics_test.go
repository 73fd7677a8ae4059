package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/soundprediction/sentinel/pkg/types"
)

func TestRecordResultSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordResult(&types.ProcessResult{
		Status: types.StatusSuccess,
		URL:    "https://example.com",
		Stats: &types.UpsertStats{
			NodesCreated:     2,
			EdgesCreated:     3,
			EdgesVerified:    1,
			EdgesInvalidated: 1,
		},
	})

	if got := testutil.ToFloat64(m.EdgesCreated); got != 3 {
		t.Errorf("edges created = %v, expected 3", got)
	}
	if got := testutil.ToFloat64(m.EdgesVerified); got != 1 {
		t.Errorf("edges verified = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(m.EdgesInvalidated); got != 1 {
		t.Errorf("edges invalidated = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(m.ProcessedURLs.WithLabelValues("success")); got != 1 {
		t.Errorf("processed success = %v, expected 1", got)
	}
}

func TestRecordResultUnchangedVerified(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordResult(&types.ProcessResult{
		Status:       types.StatusUnchangedVerified,
		URL:          "https://example.com",
		Reason:       "content_unchanged",
		EdgesUpdated: 4,
	})

	if got := testutil.ToFloat64(m.EdgesVerified); got != 4 {
		t.Errorf("edges verified = %v, expected 4", got)
	}
	if got := testutil.ToFloat64(m.ProcessedURLs.WithLabelValues("unchanged_verified")); got != 1 {
		t.Errorf("processed unchanged = %v, expected 1", got)
	}
}

func TestRecordResultNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordResult(&types.ProcessResult{Status: types.StatusSuccess})
	m.RecordResult(nil)
}
