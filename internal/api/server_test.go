package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/neurodash/internal/testutil"
)

func TestServer_ServesOnEphemeralPort(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second

	srv := NewServer(http.HandlerFunc(healthHandler), cfg, testutil.Logger(t))
	require.NoError(t, srv.Listen())
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-errCh)
}

func TestServer_ListenFailsOnBusyPort(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0

	first := NewServer(http.NotFoundHandler(), cfg, testutil.NopLogger())
	require.NoError(t, first.Listen())
	defer func() { _ = first.listener.Close() }()

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	second := NewServer(http.NotFoundHandler(), cfg, testutil.NopLogger())
	assert.Error(t, second.Listen())
}
