// ABOUTME: Tests for node metrics
// ABOUTME: Checks counters, the nil receiver and the HTTP handler
package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.Report(KindRendezvousMissed, errors.New("late"))
	m.Report(KindRendezvousMissed, errors.New("late"))
	m.Grain("texture")
	m.Taps(3)
	m.Rendezvous("started")
	m.SetReceivers(4)

	body := scrape(t, m)
	for _, line := range []string{
		`nu_errors_total{kind="rendezvous_missed"} 2`,
		`nu_grains_total{mode="texture"} 1`,
		`nu_taps_total 3`,
		`nu_rendezvous_total{outcome="started"} 1`,
		`nu_receivers 4`,
	} {
		require.Contains(t, body, line)
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Report(KindMissingAsset, errors.New("asset 3"))
	m.Grain("touch")
	m.Taps(1)
	m.Rendezvous("missed")
	m.SetReceivers(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.Taps(2)

	body := scrape(t, m)
	require.True(t, strings.Contains(body, "# TYPE nu_taps_total counter"))
	require.True(t, strings.Contains(body, "nu_taps_total 2"))
}
