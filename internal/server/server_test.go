// AngelaMos | 2026
// server_test.go

package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/accountd/internal/config"
)

type lifecycleSpy struct {
	ready    []bool
	shutdown []bool
}

func (l *lifecycleSpy) SetReady(v bool)    { l.ready = append(l.ready, v) }
func (l *lifecycleSpy) SetShutdown(v bool) { l.shutdown = append(l.shutdown, v) }

func TestServeAndShutdown(t *testing.T) {
	spy := &lifecycleSpy{}
	srv := New(Config{
		ServerConfig:  config.ServerConfig{ShutdownTimeout: time.Second},
		HealthHandler: spy,
	})
	srv.Router().Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, srv.Shutdown(context.Background(), 10*time.Millisecond))
	require.NoError(t, <-done)

	assert.Equal(t, []bool{false}, spy.ready)
	assert.Equal(t, []bool{true}, spy.shutdown)
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	srv := New(Config{})
	srv.Router().Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background(), 0) })

	resp, err := http.Get("http://" + ln.Addr().String() + "/boom")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
