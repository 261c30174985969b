package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vowbill/pkg/httpserver"
)

func startServer(t *testing.T, ctx context.Context, srv *httpserver.Server, h http.Handler) (<-chan error, string) {
	t.Helper()
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, h) }()

	deadline := time.After(2 * time.Second)
	for {
		if addr := srv.Addr(); addr != "" {
			addrCh <- addr
			break
		}
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-deadline:
			require.Fail(t, "server did not start")
		case <-time.After(10 * time.Millisecond):
		}
	}
	return done, <-addrCh
}

func TestServer_RunAndCancel(t *testing.T) {
	t.Parallel()
	var started atomic.Value
	var stopped atomic.Bool
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(200*time.Millisecond),
		httpserver.WithStartHook(func(addr string) { started.Store(addr) }),
		httpserver.WithStopHook(func() { stopped.Store(true) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done, addr := startServer(t, ctx, srv, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
	assert.Equal(t, addr, started.Load())
	assert.True(t, stopped.Load())
	assert.NoError(t, srv.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestServer_ManualShutdown(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
	done, _ := startServer(t, context.Background(), srv, http.NewServeMux())

	require.NoError(t, srv.Shutdown(context.Background()))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
}

func TestServer_StartErrors(t *testing.T) {
	t.Parallel()

	err := httpserver.New(httpserver.WithAddr("127.0.0.1:invalid")).Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done, _ := startServer(t, ctx, srv, nil)

	err = srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

	cancel()
	<-done
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})
	done, addr := startServer(t, context.Background(), srv, nil)
	assert.NotEmpty(t, addr)
	require.NoError(t, srv.Shutdown(context.Background()))
	<-done
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	decode := func(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
		t.Helper()
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(nil, 0)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"status": "ok"}, decode(t, rec))
	})

	t.Run("readiness", func(t *testing.T) {
		t.Parallel()
		ok := httpserver.Check{Name: "postgres", Probe: func(context.Context) error { return nil }}
		down := httpserver.Check{Name: "redis", Probe: func(context.Context) error { return errors.New("dial tcp: refused") }}

		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(nil, time.Second, ok)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		httpserver.HealthCheckHandler(nil, time.Second, ok, down)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, map[string]any{
			"status": "unavailable",
			"checks": map[string]any{"postgres": "ok", "redis": "unavailable"},
		}, decode(t, rec))
	})
}
