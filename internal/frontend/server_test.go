package frontend

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestServerAcceptsAndDispatchesConnections(t *testing.T) {
	port := freePort(t)
	cfg := config.Config{Ports: []config.Port{{Port: port, Version: "bb", Behavior: "login"}}}

	var mu sync.Mutex
	var handled int
	done := make(chan struct{})

	handler := func(ctx context.Context, c *client.Client) {
		mu.Lock()
		handled++
		mu.Unlock()
		close(done)
	}

	srv := New(cfg, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	mu.Lock()
	require.Equal(t, 1, handled)
	mu.Unlock()

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnUnknownVersion(t *testing.T) {
	cfg := config.Config{Ports: []config.Port{{Port: freePort(t), Version: "not-a-version"}}}
	srv := New(cfg, func(context.Context, *client.Client) {}, nil)

	err := srv.Run(context.Background())
	require.Error(t, err)
}
