package network

import (
	"FB/configs"
	"net"
	"time"

	"github.com/goccy/go-json"
)

// SendRequest opens a fresh connection, performs one request/response round
// trip and closes. It never returns nil: transport failures come back as
// error responses, so callers only ever branch on the status field.
func SendRequest(addr string, action string, params interface{}, timeout time.Duration) *Response {
	if timeout <= 0 {
		timeout = configs.RPCTimeout
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Errorf("%v", err)
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return Errorf("%v", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Errorf("%v", err)
	}
	if err := WriteMsg(conn, &Request{Action: action, Params: raw}); err != nil {
		return Errorf("%v", err)
	}
	var resp Response
	if err := ReadMsg(conn, timeout, &resp); err != nil {
		if err == ErrShortRead {
			return Errorf("no response")
		}
		return Errorf("%v", err)
	}
	return &resp
}
