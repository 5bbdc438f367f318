package branch

import (
	"sync/atomic"
	"testing"

	"FB/configs"
	"FB/network"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

var testPort int32 = 6100

// newTestBranch boots one branch on a fresh loopback port with its own data
// dir and starts serving. Closed via t.Cleanup in reverse start order.
func newTestBranch(t *testing.T, name string, replicas []string) *Context {
	t.Helper()
	configs.StorageType = configs.SQLite
	port := int(atomic.AddInt32(&testPort, 1))
	stmt, err := NewBranch(&Options{
		Host:     "127.0.0.1",
		Port:     port,
		Name:     name,
		Preload:  true,
		Replicas: replicas,
		Dir:      t.TempDir(),
	})
	require.NoError(t, err)
	go stmt.Run()
	t.Cleanup(stmt.Close)
	return stmt
}

// do feeds one request through the dispatch table, skipping the socket.
func do(t *testing.T, ctx *Context, action string, params interface{}) *network.Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return ctx.dispatch(&network.Request{Action: action, Params: raw})
}

// call performs a full round trip over TCP.
func call(t *testing.T, addr string, action string, params interface{}) *network.Response {
	t.Helper()
	return network.SendRequest(addr, action, params, configs.RPCTimeout)
}

func balanceOf(t *testing.T, ctx *Context, accountNo string) float64 {
	t.Helper()
	resp := do(t, ctx, configs.ActionBalance, &network.AccountParams{AccountNo: accountNo})
	require.True(t, resp.IsOK(), resp.Error)
	var out struct {
		Balance float64 `json:"balance"`
	}
	require.NoError(t, resp.DecodeResult(&out))
	return out.Balance
}
