package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func waitForHTTP(t *testing.T, url string) *http.Response {
	t.Helper()

	var lastErr error
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			return resp
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not come up at %s: %v", url, lastErr)
	return nil
}

func TestRun_MemorySmoke(t *testing.T) {
	apiPort := findFreePort(t)
	metricsPort := findFreePort(t)

	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf(":%d", apiPort)
	cfg.MetricsAddr = fmt.Sprintf(":%d", metricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- Run(ctx, cfg)
	}()

	resp := waitForHTTP(t, fmt.Sprintf("http://localhost:%d/healthz", apiPort))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from API /healthz, got %d", resp.StatusCode)
	}

	resp = waitForHTTP(t, fmt.Sprintf("http://localhost:%d/metrics", metricsPort))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", resp.StatusCode)
	}

	// Без identity-заголовков каталог отвечает 401, а не 500.
	resp = waitForHTTP(t, fmt.Sprintf("http://localhost:%d/products", apiPort))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 from /products without identity, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled from Run, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
