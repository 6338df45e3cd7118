// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/core/buffer"
	"github.com/momentics/hioload-select/fake"
	"github.com/momentics/hioload-select/reactor"
	"github.com/momentics/hioload-select/socket"
)

var errBoom = errors.New("boom")

// lineClient is a specialized child type.
type lineClient struct {
	*socket.Socket
	built socket.Config
}

var _ Client = (*lineClient)(nil)

func newLineClient(cfg socket.Config) (Client, error) {
	s, err := socket.New(cfg)
	if err != nil {
		return nil, err
	}
	return &lineClient{Socket: s, built: cfg}, nil
}

type spyParent struct {
	closed []*socket.Socket
}

func (p *spyParent) OnClientClosed(s *socket.Socket) { p.closed = append(p.closed, s) }

func defaultAcceptor() Acceptor {
	return AcceptorFunc(func(*Server, api.Conn) (Accepted, error) { return Accepted{}, nil })
}

type harness struct {
	r        *reactor.Reactor
	poller   *fake.Poller
	listener *fake.Listener
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := fake.NewPoller()
	r, err := reactor.New(nil, reactor.WithPoller(p))
	require.NoError(t, err)
	return &harness{r: r, poller: p, listener: fake.NewListener()}
}

func (h *harness) server(t *testing.T, a Acceptor, opts ...Option) *Server {
	t.Helper()
	srv, err := New(Config{Listener: h.listener, Reactor: h.r, Acceptor: a}, opts...)
	require.NoError(t, err)
	return srv
}

func (h *harness) accept(t *testing.T) error {
	t.Helper()
	h.poller.Push(fake.Ready(h.listener, api.Readable))
	return h.r.RunOnce()
}

func TestNewRequiresListener(t *testing.T) {
	_, err := New(Config{Acceptor: defaultAcceptor()})
	require.ErrorIs(t, err, api.ErrMissingHandle)
	var apiErr *api.CodedError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrCodeConstruction, apiErr.Code)
}

func TestBareServerIsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := New(Config{Listener: h.listener, Reactor: h.r})
	require.ErrorIs(t, err, api.ErrAbstractServer)
	assert.True(t, h.r.Empty(), "nothing registered on failure")

	srv, err := New(Config{Listener: h.listener}, WithReactor(h.r), WithAcceptor(defaultAcceptor()))
	require.NoError(t, err)
	_, ok := h.r.Callback(h.listener, api.Readable)
	assert.True(t, ok)
	assert.Same(t, h.r, srv.Reactor())
}

func TestAcceptBuildsDefaultSocket(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())
	conn := fake.NewConn()
	h.listener.Push(conn)

	require.NoError(t, h.accept(t))
	require.Equal(t, 1, srv.Len())
	child := srv.Clients()[0].Base()
	assert.Equal(t, api.Conn(conn), child.Conn())
	assert.Same(t, h.r, child.Reactor())
	_, ok := h.r.Callback(conn, api.Readable)
	assert.True(t, ok)
}

func TestAcceptOneAtATime(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())
	h.listener.Push(fake.NewConn())
	h.listener.Push(fake.NewConn())

	require.NoError(t, h.accept(t))
	assert.Equal(t, 1, srv.Len())
	assert.Equal(t, 1, h.listener.Pending())
	require.NoError(t, h.accept(t))
	assert.Equal(t, 2, srv.Len())
}

func TestAcceptorChoosesChildType(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, AcceptorFunc(func(*Server, api.Conn) (Accepted, error) {
		return Accepted{Factory: newLineClient}, nil
	}))
	conn := fake.NewConn()
	h.listener.Push(conn)

	require.NoError(t, h.accept(t))
	require.Equal(t, 1, srv.Len())
	lc, ok := srv.Clients()[0].(*lineClient)
	require.True(t, ok)
	assert.Equal(t, api.Conn(conn), lc.built.Conn)
	assert.Same(t, h.r, lc.built.Reactor)
	assert.Equal(t, socket.Parent(srv), lc.built.Parent)
}

func TestAcceptorConfigOverrides(t *testing.T) {
	h := newHarness(t)
	other, err := reactor.New(nil, reactor.WithPoller(fake.NewPoller()))
	require.NoError(t, err)
	var records []string
	srv := h.server(t, AcceptorFunc(func(*Server, api.Conn) (Accepted, error) {
		return Accepted{Config: socket.Config{
			Reactor:   other,
			Delimiter: buffer.Literal(";"),
			Hooks: socket.Hooks{OnRecord: func(_ *socket.Socket, rec []byte) error {
				records = append(records, string(rec))
				return nil
			}},
		}}, nil
	}), WithFactory(newLineClient))
	h.listener.Push(fake.NewConn())

	require.NoError(t, h.accept(t))
	lc := srv.Clients()[0].(*lineClient)
	assert.Same(t, other, lc.Reactor())
	assert.Equal(t, buffer.Literal(";"), lc.Delimiter())
	assert.Equal(t, socket.Parent(srv), lc.built.Parent)
	require.NotNil(t, lc.built.Hooks.OnRecord)
}

func TestAcceptorReturnsClient(t *testing.T) {
	h := newHarness(t)
	var made *socket.Socket
	srv := h.server(t, AcceptorFunc(func(s *Server, conn api.Conn) (Accepted, error) {
		sock, err := socket.New(socket.Config{Conn: conn, Reactor: s.Reactor(), Parent: s})
		made = sock
		return Accepted{Client: sock}, err
	}))
	h.listener.Push(fake.NewConn())

	require.NoError(t, h.accept(t))
	require.Equal(t, 1, srv.Len())
	assert.Same(t, made, srv.Clients()[0].Base())
}

func TestAcceptorErrorPropagates(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, AcceptorFunc(func(*Server, api.Conn) (Accepted, error) {
		return Accepted{}, errBoom
	}))
	conn := fake.NewConn()
	h.listener.Push(conn)

	require.ErrorIs(t, h.accept(t), errBoom)
	assert.Zero(t, srv.Len())
	assert.True(t, conn.Closed())
}

func TestFactoryErrorPropagates(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, AcceptorFunc(func(*Server, api.Conn) (Accepted, error) {
		return Accepted{Config: socket.Config{ChunkSize: -1}}, nil
	}))
	conn := fake.NewConn()
	h.listener.Push(conn)

	require.ErrorIs(t, h.accept(t), api.ErrInvalidArgument)
	assert.Zero(t, srv.Len())
	assert.True(t, conn.Closed())
}

func TestTransientAcceptIsSwallowed(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())

	require.NoError(t, h.accept(t)) // EAGAIN from an empty listener
	h.listener.SetAcceptError(syscall.EINTR)
	require.NoError(t, h.accept(t))
	assert.Zero(t, srv.Len())
	_, ok := h.r.Callback(h.listener, api.Readable)
	assert.True(t, ok, "listener stays registered")
}

func TestAcceptFailurePropagates(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())

	h.listener.SetAcceptError(syscall.EMFILE)
	err := h.accept(t)
	require.ErrorIs(t, err, syscall.EMFILE)
	assert.Contains(t, err.Error(), "server accept")
	assert.Zero(t, srv.Len())
}

func TestEmbeddedSocketIsTrackedUntilClosed(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, AcceptorFunc(func(*Server, api.Conn) (Accepted, error) {
		return Accepted{Factory: newLineClient}, nil
	}))
	conn := fake.NewConn()
	h.listener.Push(conn)
	require.NoError(t, h.accept(t))
	lc := srv.Clients()[0].(*lineClient)
	assert.Same(t, lc.Socket, lc.Base())

	conn.AddEOF()
	h.poller.Push(fake.Ready(conn, api.Readable))
	require.NoError(t, h.r.RunOnce())
	assert.True(t, lc.Closed())
	assert.Zero(t, srv.Len())
}

func TestReadyClientMustBeOwned(t *testing.T) {
	for name, parent := range map[string]socket.Parent{"none": nil, "other": &spyParent{}} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			conn := fake.NewConn()
			srv := h.server(t, AcceptorFunc(func(s *Server, c api.Conn) (Accepted, error) {
				sock, err := socket.New(socket.Config{Conn: c, Reactor: s.Reactor(), Parent: parent})
				return Accepted{Client: sock}, err
			}))
			h.listener.Push(conn)

			err := h.accept(t)
			require.ErrorIs(t, err, api.ErrInvalidArgument)
			assert.Zero(t, srv.Len())
			assert.True(t, conn.Closed())
			assert.Equal(t, 1, h.r.Registered(api.AllEvents), "only the listener is left")
		})
	}
}

func TestConfigParentIsChained(t *testing.T) {
	h := newHarness(t)
	spy := &spyParent{}
	srv := h.server(t, AcceptorFunc(func(*Server, api.Conn) (Accepted, error) {
		return Accepted{Config: socket.Config{Parent: spy}}, nil
	}))
	conn := fake.NewConn()
	h.listener.Push(conn)
	require.NoError(t, h.accept(t))
	require.Equal(t, 1, srv.Len())

	conn.AddEOF()
	h.poller.Push(fake.Ready(conn, api.Readable))
	require.NoError(t, h.r.RunOnce())
	assert.Zero(t, srv.Len())
	assert.Len(t, spy.closed, 1)
}

func TestChildCloseRemovesIt(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())
	conn := fake.NewConn()
	h.listener.Push(conn)
	require.NoError(t, h.accept(t))

	conn.AddEOF()
	h.poller.Push(fake.Ready(conn, api.Readable))
	require.NoError(t, h.r.RunOnce())
	assert.Zero(t, srv.Len())
	assert.True(t, conn.Closed())
}

func TestCloseAllClients(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())
	conns := []*fake.Conn{fake.NewConn(), fake.NewConn(), fake.NewConn()}
	for _, c := range conns {
		h.listener.Push(c)
		require.NoError(t, h.accept(t))
	}
	require.Equal(t, 3, srv.Len())
	conns[1].SetCloseError(errBoom)

	require.ErrorIs(t, srv.CloseAllClients(), errBoom)
	assert.Zero(t, srv.Len())
	for _, c := range conns {
		assert.True(t, c.Closed())
		assert.Equal(t, 1, c.CloseCalls())
	}
	_, ok := h.r.Callback(h.listener, api.Readable)
	assert.True(t, ok)
}

func TestCloseListener(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())
	h.listener.Push(fake.NewConn())
	require.NoError(t, h.accept(t))

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
	assert.True(t, srv.Closed())
	assert.True(t, h.listener.Closed())
	_, ok := h.r.Callback(h.listener, api.Readable)
	assert.False(t, ok)
	assert.Equal(t, 1, srv.Len(), "children survive Close")
}

func TestShutdownEmptiesReactor(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())
	h.listener.Push(fake.NewConn())
	require.NoError(t, h.accept(t))

	require.NoError(t, srv.Shutdown())
	assert.True(t, h.r.Empty())
	assert.True(t, h.r.Stopped())
	require.NoError(t, srv.Run(nil))
}

func TestRunExitsWhenEmpty(t *testing.T) {
	h := newHarness(t)
	srv := h.server(t, defaultAcceptor())
	conn := fake.NewConn()
	h.listener.Push(conn)
	h.poller.Push(fake.Ready(h.listener, api.Readable))

	ticks := 0
	err := srv.Run(func() error {
		ticks++
		switch ticks {
		case 1:
			require.Equal(t, 1, srv.Len())
			return srv.Close()
		case 2:
			return srv.CloseAllClients()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ticks)
	assert.True(t, h.r.Empty())
}
