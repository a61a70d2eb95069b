package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "192.168.50.10:51234", want: "192.168.50.10"},
		{name: "forwarded header ignored", forwarded: "203.0.113.1", remoteAddr: "192.168.50.10:51234", want: "192.168.50.10"},
		{name: "ipv6 with port", remoteAddr: net.JoinHostPort("fe80::1", "443"), want: "fe80::1"},
		{name: "no port", remoteAddr: "192.168.50.11", want: "192.168.50.11"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth_check", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientAddr(req); got != tc.want {
				t.Fatalf("clientAddr() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLimiterWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("a"); !ok {
			t.Fatalf("attempt %d rejected", i+1)
		}
	}
	ok, wait := l.Allow("a")
	if ok || wait != time.Minute {
		t.Fatalf("third attempt = %v, %v, want rejected with a minute wait", ok, wait)
	}
	if ok, _ := l.Allow("b"); !ok {
		t.Fatal("other client rejected")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Allow("a"); !ok {
		t.Fatal("attempt after window reset rejected")
	}
	if _, tracked := l.windows["b"]; tracked {
		t.Fatal("expired window for b not swept")
	}
}

func TestLimiterHandler(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	h := RequestID(l.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth_check", nil)
		req.RemoteAddr = "192.168.50.10:1000"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatal("missing request id header")
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [204 429]", codes)
	}
}
