package obs

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"taskhub.dev/internal/ids"
)

func TestCanonicalPath(t *testing.T) {
	id := ids.New()
	cases := map[string]string{
		"":                                     "/",
		"/metrics":                             "/metrics",
		"/v1/projects":                         "/v1/projects",
		"/v1/projects/" + id:                   "/v1/projects/:id",
		"/v1/projects/" + id + "/tasks/" + id:  "/v1/projects/:id/tasks/:id",
		"/v1/projects/" + id + "/notes?x=1":    "/v1/projects/:id/notes",
		"/v1/projects/not-an-id":               "/v1/projects/not-an-id",
		"/v1/auth/verify-email/abcdef0123":     "/v1/auth/verify-email/:token",
		"/v1/auth/reset-password/abcdef0123/":  "/v1/auth/reset-password/:token",
		"/v1/auth/login":                       "/v1/auth/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentPassesThroughStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/projects/"+ids.New(), nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestInitBuildInfoKeepsOneSeries(t *testing.T) {
	InitBuildInfo("1.0.0", "abc123")
	InitBuildInfo("1.1.0", "")
	if n := testutil.CollectAndCount(buildInfo); n != 1 {
		t.Fatalf("expected one build_info series, got %d", n)
	}
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("1.1.0", "unknown", runtime.Version())); v != 1 {
		t.Fatalf("unexpected build_info value: %v", v)
	}
}
