package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	return cfg
}

func TestFromServerConfig(t *testing.T) {
	app := config.DefaultServerConfig()
	app.WriteTimeout = time.Minute

	cfg := FromServerConfig(app, 9091)
	assert.Equal(t, ":9091", cfg.Addr)
	assert.Equal(t, time.Minute, cfg.WriteTimeout)
	assert.Equal(t, app.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
}

func TestManager_StartAndShutdown(t *testing.T) {
	m := NewManager(okHandler(), testConfig(), zap.NewNop())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	assert.Error(t, m.Start())
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(okHandler(), testConfig(), zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	assert.ErrorContains(t, m.Start(), "already started")
}

func TestManager_ListenFailure(t *testing.T) {
	first := NewManager(okHandler(), testConfig(), zap.NewNop())
	require.NoError(t, first.Start())
	t.Cleanup(func() { first.Shutdown(context.Background()) })

	cfg := testConfig()
	cfg.Addr = first.Addr()
	second := NewManager(okHandler(), cfg, zap.NewNop())
	assert.Error(t, second.Start())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(okHandler(), testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, m.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, m.IsRunning())
}
