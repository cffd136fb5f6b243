package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSONUsesConfiguredLimit(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", 64) + `"}`
	var dst struct {
		Name string `json:"name"`
	}

	small := New(nil, nil, WithLimits(32, 0, 0, 0))
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(body))
	err := small.decodeJSON(httptest.NewRecorder(), req, &dst)
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected MaxBytesError, got %v", err)
	}
	if tooLarge.Limit != 32 {
		t.Fatalf("unexpected limit %d", tooLarge.Limit)
	}

	roomy := New(nil, nil, WithLimits(4096, 0, 0, 0))
	req = httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(body))
	if err := roomy.decodeJSON(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("decode within limit: %v", err)
	}
	if len(dst.Name) != 64 {
		t.Fatalf("unexpected name length %d", len(dst.Name))
	}
}

func TestDecodeOptionalJSONAcceptsEmptyBody(t *testing.T) {
	a := New(nil, nil)
	var dst struct {
		Token string `json:"refresh_token"`
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh-token", nil)
	if err := a.decodeOptionalJSON(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("empty body rejected: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/refresh-token", strings.NewReader(`{"bogus":1}`))
	if err := a.decodeOptionalJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatal("unknown field accepted")
	}
}
