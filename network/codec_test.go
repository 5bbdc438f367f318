package network

import (
	"math"
	"net"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/magiconair/properties/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = WriteMsg(client, &Request{Action: "balance", Params: []byte(`{"account_no":"1001"}`)})
	}()

	var req Request
	require.NoError(t, ReadMsg(server, time.Second, &req))
	assert.Equal(t, req.Action, "balance")

	var p AccountParams
	require.NoError(t, json.Unmarshal(req.Params, &p))
	assert.Equal(t, p.AccountNo, "1001")
}

func TestFrameShortRead(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		// half a header, then hang up.
		_, _ = client.Write([]byte{0x00, 0x00})
		client.Close()
	}()

	var req Request
	err := ReadMsg(server, time.Second, &req)
	assert.Equal(t, err, ErrShortRead)
}

func TestFrameReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var req Request
	err := ReadMsg(server, 50*time.Millisecond, &req)
	assert.Equal(t, err, ErrTimeout)
}

func TestResponseHelpers(t *testing.T) {
	ok := Ok(map[string]interface{}{"balance": 10.0})
	require.True(t, ok.IsOK())

	var out struct {
		Balance float64 `json:"balance"`
	}
	require.NoError(t, ok.DecodeResult(&out))
	assert.Equal(t, out.Balance, 10.0)

	e := Errorf("unknown action %s", "fly")
	require.False(t, e.IsOK())
	assert.Equal(t, e.Error, "unknown action fly")
}

func TestValidAmount(t *testing.T) {
	require.True(t, ValidAmount(0))
	require.True(t, ValidAmount(12.5))
	require.False(t, ValidAmount(-1))
	require.False(t, ValidAmount(math.NaN()))
	require.False(t, ValidAmount(math.Inf(1)))
}
