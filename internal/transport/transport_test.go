package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/observability"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithRateLimit(0, 0)), srv
}

func TestCall_GetDecodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "" {
			t.Errorf("GET without body must not set Content-Type, got %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Accept") != "" {
			t.Errorf("GET without body must not negotiate, Accept = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ready":true}`)
	})

	res, err := c.Call(context.Background(), http.MethodGet, "/status", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var out struct {
		Ready bool `json:"ready"`
	}
	if err := res.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.Ready {
		t.Error("ready = false")
	}
	if res.Empty() {
		t.Error("Empty = true for a JSON body")
	}
}

func TestCall_PostSerializesBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "karpathy" {
			t.Errorf("body = %v", body)
		}
		io.WriteString(w, `{"ok":true}`)
	})

	if _, err := c.Call(context.Background(), http.MethodPost, "/influencers", map[string]string{"username": "karpathy"}); err != nil {
		t.Fatal(err)
	}
}

func TestCall_NoContentIsEmptyResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := c.Call(context.Background(), http.MethodDelete, "/report/abc", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.Empty() {
		t.Error("expected Empty result")
	}
	if res.Status() != http.StatusNoContent {
		t.Errorf("Status = %d", res.Status())
	}
	if err := res.Decode(&struct{}{}); err == nil {
		t.Error("decoding an empty result should fail")
	}
}

func TestCall_MalformedBodyIsConnectivity(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>proxy error</html>`)
	})

	_, err := c.Call(context.Background(), http.MethodGet, "/dashboard", nil)
	if !fault.IsConnectivity(err) {
		t.Fatalf("expected connectivity, got %v", err)
	}
	fe, _ := fault.As(err)
	if fe.Code != fault.CodeMalformed {
		t.Errorf("Code = %q", fe.Code)
	}
}

func TestCall_ErrorDetailParsing(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantCode   string
	}{
		{"string detail", 400, `{"detail":"Invalid report ID."}`, "Invalid report ID.", fault.CodeInvalid},
		{"validation list", 422, `{"detail":[{"loc":["body","username"],"msg":"field required"}]}`, "username: field required", fault.CodeInvalid},
		{"message field", 500, `{"message":"upstream failed"}`, "upstream failed", ""},
		{"error object", 502, `{"error":{"message":"bad gateway"}}`, "bad gateway", ""},
		{"explicit code", 409, `{"detail":"@x is already in the list.","code":"dup"}`, "@x is already in the list.", "dup"},
		{"fallback status text", 503, ``, "Service Unavailable", ""},
		{"non-json body", 404, `not json`, "Not Found", fault.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.Call(context.Background(), http.MethodGet, "/x", nil)
			fe, ok := fault.As(err)
			if !ok {
				t.Fatalf("expected *fault.Error, got %T %v", err, err)
			}
			if fe.Kind != fault.KindHardDomain {
				t.Errorf("Kind = %v", fe.Kind)
			}
			if fe.Status != tt.status {
				t.Errorf("Status = %d", fe.Status)
			}
			if fe.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", fe.Detail, tt.wantDetail)
			}
			if fe.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", fe.Code, tt.wantCode)
			}
		})
	}
}

func TestCall_SoftOn(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"No report yet. Click 'Generate Daily Report'."}`)
	})

	_, err := c.Call(context.Background(), http.MethodGet, "/dashboard", nil, SoftOn(http.StatusNotFound, fault.CodeNoReport))
	fe, ok := fault.As(err)
	if !ok || fe.Kind != fault.KindSoftDomain {
		t.Fatalf("expected soft error, got %v", err)
	}
	if fe.Code != fault.CodeNoReport {
		t.Errorf("Code = %q", fe.Code)
	}

	// Without the option the same answer is a hard failure.
	_, err = c.Call(context.Background(), http.MethodGet, "/report/abc", nil)
	if !fault.IsHard(err) {
		t.Errorf("expected hard error, got %v", err)
	}
}

func TestCall_ServerCodeNoReportIsSoft(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"nothing here","code":"no_report"}`)
	})
	_, err := c.Call(context.Background(), http.MethodGet, "/dashboard", nil)
	if !fault.IsSoft(err) {
		t.Errorf("expected soft error, got %v", err)
	}
}

func TestCall_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	m := observability.NewMetricsCollector(10)
	c := New(url, WithRateLimit(0, 0), WithMetrics(m))
	_, err := c.Call(context.Background(), http.MethodGet, "/status", nil)
	if !fault.IsConnectivity(err) {
		t.Fatalf("expected connectivity, got %v", err)
	}
	if m.Counter("errors.connectivity") != 1 {
		t.Errorf("errors.connectivity = %d", m.Counter("errors.connectivity"))
	}
	if m.Counter(observability.CounterRequests) != 1 {
		t.Errorf("requests = %d", m.Counter(observability.CounterRequests))
	}
}

func TestCall_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	WithTimeout(50 * time.Millisecond)(c)

	_, err := c.Call(context.Background(), http.MethodGet, "/job/slow", nil)
	if !fault.IsConnectivity(err) {
		t.Fatalf("expected connectivity on timeout, got %v", err)
	}
}

func TestCall_CancelledContextDuringRateWait(t *testing.T) {
	c := New("http://127.0.0.1:1", WithRateLimit(0.001, 1))
	// Drain the single token.
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Call(ctx, http.MethodGet, "/status", nil)
	if !fault.IsConnectivity(err) {
		t.Fatalf("expected connectivity, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestCall_Prefix(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{}`)
	})
	WithPrefix("/v2/")(c)
	if _, err := c.Call(context.Background(), http.MethodGet, "/status", nil); err != nil {
		t.Fatal(err)
	}
}
