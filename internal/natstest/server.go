// Package natstest runs an embedded NATS server with JetStream for tests of
// the history KV store and the context event publisher.
package natstest

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

const readyTimeout = 5 * time.Second

// Connect starts a loopback server with JetStream storage in t.TempDir() and
// returns a client for it. Both are torn down by t.Cleanup, client first.
func Connect(t testing.TB) *nats.Conn {
	t.Helper()

	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      natsserver.RANDOM_PORT,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()
	require.True(t, srv.ReadyForConnections(readyTimeout), "embedded nats did not come up within %s", readyTimeout)
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})

	nc, err := nats.Connect(srv.ClientURL(), nats.Name(t.Name()))
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}
