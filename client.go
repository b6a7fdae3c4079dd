package sqlreplay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/rpc"

	"github.com/puzpuzpuz/xsync/v4"
)

const logCalls = false

// Client talks to a Host. A call that the server failed returns a *Fault and
// leaves the channel usable. Any other call failure faults the channel, after
// which every call fails with ErrChannelFaulted and the Client must be closed
// and replaced.
type Client struct {
	rpcCl   *rpc.Client
	conn    net.Conn
	address string
	faults  faultState
	aborted bool
	// Connections created through this client, disposed by a graceful Close.
	conns *xsync.Map[ConnectionHandle, struct{}]
}

// Dial connects to a Host at address, keeping the raw conn so a faulted
// channel can be aborted.
func Dial(address string) (*Client, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	io.WriteString(conn, "CONNECT "+rpc.DefaultRPCPath+" HTTP/1.0\n\n")
	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: "CONNECT"})
	if err == nil && resp.Status != "200 Connected to Go RPC" {
		err = errors.New("unexpected HTTP response: " + resp.Status)
	}
	if err != nil {
		conn.Close()
		return nil, &net.OpError{Op: "dial-http", Net: "tcp " + address, Addr: nil, Err: err}
	}
	return &Client{
		rpcCl:   rpc.NewClient(conn),
		conn:    conn,
		address: address,
		conns:   xsync.NewMap[ConnectionHandle, struct{}](),
	}, nil
}

func (me *Client) Address() string {
	return me.address
}

// Faulted returns the transport failure that faulted the channel, if any.
func (me *Client) Faulted() error {
	return me.faults.faulted()
}

func (me *Client) Call(method string, args, reply interface{}) (err error) {
	if ferr := me.faults.faulted(); ferr != nil {
		return fmt.Errorf("%w: %v", ErrChannelFaulted, ferr)
	}
	if logCalls {
		log.Debug(method)
	}
	err = me.rpcCl.Call(serviceName+"."+method, args, reply)
	if err == nil {
		return
	}
	if logCalls {
		log.Debug(err)
	}
	var se rpc.ServerError
	if errors.As(err, &se) {
		return decodeFault(string(se))
	}
	me.faults.notify(err)
	return fmt.Errorf("%w: %v", ErrChannelFaulted, err)
}

// Close aborts a faulted channel by dropping the conn. Otherwise it disposes
// the connections created through the client that remain, then closes the
// channel. Only the first call does anything.
func (me *Client) Close() error {
	ferr, first := me.faults.unsubscribe()
	if !first {
		return nil
	}
	if ferr != nil {
		me.aborted = true
		me.conn.Close()
		return nil
	}
	me.conns.Range(func(h ConnectionHandle, _ struct{}) bool {
		if err := me.rpcCl.Call(serviceName+".DisposeConnection", ConnectionArgs{h}, &struct{}{}); err != nil {
			log.Warningf("disposing connection %v: %v", h, err)
		}
		return true
	})
	return me.rpcCl.Close()
}
