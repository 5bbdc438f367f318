package branch

import (
	"FB/configs"
	"FB/network"
	"net"
)

// Comm accepts branch connections. The protocol is one request and one
// response per connection; the peer closes after reading the reply.
type Comm struct {
	done     chan bool
	listener net.Listener
	stmt     *Context
	sem      chan struct{}
}

func NewConns(stmt *Context, address string) (*Comm, error) {
	res := &Comm{stmt: stmt}
	res.done = make(chan bool, 1)
	tcpAddr, err := net.ResolveTCPAddr("tcp4", address)
	if err != nil {
		return nil, err
	}
	res.listener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Comm) Run() {
	c.sem = make(chan struct{}, configs.MaxConnectionHandler)
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
				configs.Warn(false, err.Error())
				continue
			}
		}
		c.sem <- struct{}{}
		go func() {
			defer func() {
				<-c.sem
			}()
			c.handleRequest(conn)
		}()
	}
}

func (c *Comm) handleRequest(conn net.Conn) {
	defer conn.Close()
	var req network.Request
	if err := network.ReadMsg(conn, configs.ReadTimeout, &req); err != nil {
		if err == network.ErrShortRead {
			// peer went away without sending a frame, nothing to answer.
			return
		}
		c.reply(conn, network.Errorf("%v", err))
		return
	}
	c.reply(conn, c.stmt.dispatch(&req))
}

func (c *Comm) reply(conn net.Conn, resp *network.Response) {
	if err := network.WriteMsg(conn, resp); err != nil {
		configs.Warn(false, err.Error())
	}
}

func (c *Comm) Stop() {
	c.done <- true
	configs.CheckError(c.listener.Close())
}

// dispatch routes one decoded request. A handler panic is turned into an
// error response so a malformed request cannot take the accept loop down.
func (ctx *Context) dispatch(req *network.Request) (resp *network.Response) {
	defer func() {
		if r := recover(); r != nil {
			configs.Warn(false, configs.JToString(r))
			resp = network.Errorf("%v", r)
		}
	}()
	ctx.stats.IncRequest()
	h, ok := ctx.handlers[req.Action]
	if !ok {
		return network.Errorf("unknown action %s", req.Action)
	}
	configs.DPrintf("%s handling %s", ctx.name, req.Action)
	return h(req.Params)
}
