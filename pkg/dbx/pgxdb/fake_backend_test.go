package pgxdb

import (
	"fmt"
	"net"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/stretchr/testify/require"
)

// fakeBackend - in-process server speaking enough of the PostgreSQL protocol to open pool sessions.
// Startup is accepted without authentication and every simple query gets an empty response.
type fakeBackend struct {
	listener net.Listener
	sessions atomic.Int64
}

func startFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := &fakeBackend{listener: ln}
	go b.serve()

	t.Cleanup(func() {
		_ = ln.Close()
	})

	return b
}

func (b *fakeBackend) dsn() string {
	return fmt.Sprintf("postgres://user:secret@%s/db?sslmode=disable", b.listener.Addr().String())
}

func (b *fakeBackend) serve() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}

		b.sessions.Add(1)

		go b.session(conn)
	}
}

func (b *fakeBackend) session(conn net.Conn) {
	defer conn.Close()

	backend := pgproto3.NewBackend(conn, conn)

	if !acceptStartup(conn, backend) {
		return
	}

	for {
		msg, err := backend.Receive()
		if err != nil {
			return
		}

		switch msg.(type) {
		case *pgproto3.Query:
			backend.Send(&pgproto3.EmptyQueryResponse{})
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})

			if err := backend.Flush(); err != nil {
				return
			}
		case *pgproto3.Terminate:
			return
		}
	}
}

func acceptStartup(conn net.Conn, backend *pgproto3.Backend) bool {
	for {
		msg, err := backend.ReceiveStartupMessage()
		if err != nil {
			return false
		}

		switch msg.(type) {
		case *pgproto3.StartupMessage:
			backend.Send(&pgproto3.AuthenticationOk{})
			backend.Send(&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"})
			backend.Send(&pgproto3.ParameterStatus{Name: "standard_conforming_strings", Value: "on"})
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})

			return backend.Flush() == nil
		case *pgproto3.SSLRequest, *pgproto3.GSSEncRequest:
			if _, err := conn.Write([]byte("N")); err != nil {
				return false
			}
		default:
			return false
		}
	}
}
