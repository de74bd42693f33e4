package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"parking-viewer/src/helpers"
	"parking-viewer/src/logger"
	"parking-viewer/src/models"
)

func testConfig(retries int) *models.MConfig {
	return &models.MConfig{
		Network: models.MNetworkConfig{RequestTimeout: 2, MaxRetries: retries, UserAgent: "viewer-test"},
	}
}

func TestGetSendsParamsAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.URL.Query().Get("mode"); got != "FCFS" {
			t.Errorf("mode param = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "viewer-test" {
			t.Errorf("user agent = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(0), logger.NewLogger(nil, "test"))
	body, err := nm.Get(context.Background(), srv.URL+"/step", map[string]string{"mode": "FCFS"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
}

func TestNon2xxIsTransportError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(1), logger.NewLogger(nil, "test"))
	_, err := nm.Post(context.Background(), srv.URL+"/init", nil)
	var te *helpers.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", te.StatusCode)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("hits = %d, want 2 (one retry)", hits)
	}
}

func TestGetOnceDoesNotRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(2), logger.NewLogger(nil, "test"))
	if _, err := nm.GetOnce(context.Background(), srv.URL+"/step", nil); !helpers.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("hits = %d, want 1", n)
	}
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	nm := NewAsyncNetworkManager(testConfig(0), logger.NewLogger(nil, "test"))
	_, err := nm.Get(context.Background(), url+"/step", nil)
	if !helpers.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestProxyValidation(t *testing.T) {
	cfg := testConfig(0)
	cfg.Network.Enabled = true
	cfg.Network.Proxies = []string{"127.0.0.1:3128", "", "ftp://bad"}
	nm := NewAsyncNetworkManager(cfg, logger.NewLogger(nil, "test"))
	if !nm.ProxyManager.HasProxies() {
		t.Fatalf("expected the valid proxy to be kept")
	}
	p, _ := nm.ProxyManager.GetCurrentProxy()
	if p != "http://127.0.0.1:3128" {
		t.Errorf("proxy = %q", p)
	}
}
