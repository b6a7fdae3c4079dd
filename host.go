package sqlreplay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

const (
	DefaultGracePeriod = 5 * time.Second
	HandlesPath        = "/handles"
)

// Host serves a Service over net/rpc on HTTP CONNECT, with a status page at
// HandlesPath.
type Host struct {
	Service *Service
	// How long a graceful Close waits for clients to hang up.
	GracePeriod time.Duration

	listener net.Listener
	server   *http.Server
	conns    *xsync.Map[*trackedConn, struct{}]
	served   chan struct{}
	faults   faultState
	aborted  bool
}

func NewHost(s *Service, l net.Listener) (*Host, error) {
	rs := rpc.NewServer()
	if err := rs.RegisterName(serviceName, s); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, rs)
	mux.Handle(HandlesPath, handlesHandler(s))
	h := &Host{
		Service:     s,
		GracePeriod: DefaultGracePeriod,
		listener:    l,
		server:      &http.Server{Handler: mux},
		conns:       xsync.NewMap[*trackedConn, struct{}](),
		served:      make(chan struct{}),
	}
	go h.serve()
	return h, nil
}

func (me *Host) serve() {
	defer close(me.served)
	err := me.server.Serve(trackingListener{me.listener, me})
	if !errors.Is(err, http.ErrServerClosed) {
		me.faults.notify(err)
	}
}

func (me *Host) Addr() net.Addr {
	return me.listener.Addr()
}

// Faulted returns the transport failure that faulted the host, if any.
func (me *Host) Faulted() error {
	return me.faults.faulted()
}

// Close aborts a faulted host: every client connection is dropped. Otherwise it
// stops accepting, and gives connected clients GracePeriod to hang up. Only the
// first call does anything.
func (me *Host) Close() error {
	ferr, first := me.faults.unsubscribe()
	if !first {
		return nil
	}
	if ferr != nil {
		me.abort()
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), me.GracePeriod)
	defer cancel()
	err := me.server.Shutdown(ctx)
	for me.conns.Size() != 0 && ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Millisecond):
		}
	}
	me.closeConns()
	<-me.served
	return err
}

func (me *Host) abort() {
	me.aborted = true
	me.server.Close()
	me.closeConns()
	<-me.served
}

func (me *Host) closeConns() {
	me.conns.Range(func(c *trackedConn, _ struct{}) bool {
		c.Close()
		return true
	})
}

// WithHost runs f with a Host serving s on l, and closes the host however f
// exits.
func WithHost(s *Service, l net.Listener, f func(*Host) error) (err error) {
	h, err := NewHost(s, l)
	if err != nil {
		return
	}
	defer func() {
		if cerr := h.Close(); err == nil {
			err = cerr
		}
	}()
	return f(h)
}

// trackingListener remembers accepted conns. net/rpc hijacks them from the
// http.Server, which then no longer knows about them.
type trackingListener struct {
	net.Listener
	h *Host
}

func (me trackingListener) Accept() (net.Conn, error) {
	c, err := me.Listener.Accept()
	if err != nil {
		return nil, err
	}
	tc := &trackedConn{Conn: c, h: me.h}
	me.h.conns.Store(tc, struct{}{})
	return tc, nil
}

type trackedConn struct {
	net.Conn
	h    *Host
	once sync.Once
}

func (me *trackedConn) Close() (err error) {
	me.once.Do(func() {
		me.h.conns.Delete(me)
		err = me.Conn.Close()
	})
	return
}

func handlesHandler(s *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counts := s.HandleCounts()
		roles := make([]string, 0, len(counts))
		for role := range counts {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			fmt.Fprintf(w, "%s: %d\n", role, counts[role])
		}
	})
}
