package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRecordEvents(t *testing.T) {
	registry := prometheus.NewRegistry()
	collectors := NewWithRegistry(registry, registry)

	collectors.ToggleTransition("reaction", "created")
	collectors.ToggleTransition("reaction", "created")
	collectors.ToggleTransition("follow", "removed")
	collectors.CounterGuardRejected("posts.reaction_count")
	collectors.NotificationFailed("comment")
	collectors.RateLimited("reactions")
	collectors.ObserveRequest(http.MethodGet, "/posts/:ref", http.StatusOK, 15*time.Millisecond)
	collectors.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	testCases := []struct {
		name  string
		value float64
		want  float64
	}{
		{name: "reaction-created", value: testutil.ToFloat64(collectors.toggleTransitions.WithLabelValues("reaction", "created")), want: 2},
		{name: "follow-removed", value: testutil.ToFloat64(collectors.toggleTransitions.WithLabelValues("follow", "removed")), want: 1},
		{name: "guard", value: testutil.ToFloat64(collectors.guardRejections.WithLabelValues("posts.reaction_count")), want: 1},
		{name: "notification", value: testutil.ToFloat64(collectors.notifyFailures.WithLabelValues("comment")), want: 1},
		{name: "rate-limited", value: testutil.ToFloat64(collectors.rateLimited.WithLabelValues("reactions")), want: 1},
		{name: "http", value: testutil.ToFloat64(collectors.httpRequests.WithLabelValues("GET", "/posts/:ref", "200")), want: 1},
		{name: "http-unmatched", value: testutil.ToFloat64(collectors.httpRequests.WithLabelValues("GET", "unmatched", "404")), want: 1},
	}
	for _, testCase := range testCases {
		if testCase.value != testCase.want {
			t.Fatalf("%s: expected %v, got %v", testCase.name, testCase.want, testCase.value)
		}
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var collectors *Collectors
	collectors.ToggleTransition("reaction", "created")
	collectors.CounterGuardRejected("posts.reaction_count")
	collectors.NotificationFailed("comment")
	collectors.RateLimited("reads")
	collectors.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	if collectors.Handler() == nil {
		t.Fatalf("expected a fallback handler")
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	collectors := New()
	collectors.ToggleTransition("bookmark", "created")

	recorder := httptest.NewRecorder()
	collectors.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	for _, metric := range []string{"swirl_toggle_transitions_total", "go_goroutines"} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %s in exposition output", metric)
		}
	}
}
