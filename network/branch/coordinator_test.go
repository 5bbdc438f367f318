package branch

import (
	"strconv"
	"strings"
	"testing"

	"FB/configs"
	"FB/network"

	"github.com/magiconair/properties/assert"
	"github.com/stretchr/testify/require"
)

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	i := strings.LastIndex(addr, ":")
	require.True(t, i > 0)
	port, err := strconv.Atoi(addr[i+1:])
	require.NoError(t, err)
	return addr[:i], port
}

func TestInterBranchTransfer(t *testing.T) {
	src := newTestBranch(t, "A", nil)
	dst := newTestBranch(t, "B", nil)
	host, port := splitAddr(t, dst.Addr())

	resp := call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
		SrcAccountNo:  "1001",
		DestHost:      host,
		DestPort:      port,
		DestAccountNo: "1002",
		Amount:        250,
	})
	require.True(t, resp.IsOK(), resp.Error)

	var out struct {
		Status string  `json:"status"`
		Txid   string  `json:"txid"`
		Amount float64 `json:"amount"`
		From   string  `json:"from"`
		To     string  `json:"to"`
	}
	require.NoError(t, resp.DecodeResult(&out))
	assert.Equal(t, out.Status, "transfer_complete")
	assert.Equal(t, out.Amount, 250.0)
	assert.Equal(t, out.From, "A:1001")
	assert.Equal(t, out.To, host+":1002")
	require.True(t, strings.HasPrefix(out.Txid, "A-"))

	assert.Equal(t, balanceOf(t, src, "1001"), 750.0)
	assert.Equal(t, balanceOf(t, dst, "1002"), 1250.0)

	// no journal entries survive a completed transfer.
	rows, err := src.store.ListPending()
	require.NoError(t, err)
	assert.Equal(t, len(rows), 0)
	rows, err = dst.store.ListPending()
	require.NoError(t, err)
	assert.Equal(t, len(rows), 0)
}

func TestTransferTxidsUnique(t *testing.T) {
	src := newTestBranch(t, "A", nil)
	dst := newTestBranch(t, "B", nil)
	host, port := splitAddr(t, dst.Addr())

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		resp := call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
			SrcAccountNo: "1001", DestHost: host, DestPort: port, DestAccountNo: "1001", Amount: 10,
		})
		require.True(t, resp.IsOK(), resp.Error)
		var out struct {
			Txid string `json:"txid"`
		}
		require.NoError(t, resp.DecodeResult(&out))
		require.False(t, seen[out.Txid])
		seen[out.Txid] = true
	}
}

func TestTransferSourceRejected(t *testing.T) {
	src := newTestBranch(t, "A", nil)
	dst := newTestBranch(t, "B", nil)
	host, port := splitAddr(t, dst.Addr())

	resp := call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
		SrcAccountNo: "1001", DestHost: host, DestPort: port, DestAccountNo: "1002", Amount: 5000,
	})
	require.False(t, resp.IsOK())
	require.True(t, strings.HasPrefix(resp.Error, "local prepare failed: "), resp.Error)
	require.True(t, strings.Contains(resp.Error, "insufficient funds or account not found"), resp.Error)

	assert.Equal(t, balanceOf(t, src, "1001"), 1000.0)
	assert.Equal(t, balanceOf(t, dst, "1002"), 1000.0)
}

func TestTransferDestinationDown(t *testing.T) {
	src := newTestBranch(t, "A", nil)

	// nothing listens on this port.
	resp := call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
		SrcAccountNo: "1001", DestHost: "127.0.0.1", DestPort: 1, DestAccountNo: "1002", Amount: 50,
	})
	require.False(t, resp.IsOK())
	require.True(t, strings.HasPrefix(resp.Error, "destination prepare failed: "), resp.Error)

	// the local reservation was released.
	assert.Equal(t, balanceOf(t, src, "1001"), 1000.0)
	rows, err := src.store.ListPending()
	require.NoError(t, err)
	assert.Equal(t, len(rows), 0)
}

func TestTransferDestinationRejects(t *testing.T) {
	src := newTestBranch(t, "A", nil)
	dst := newTestBranch(t, "B", nil)
	host, port := splitAddr(t, dst.Addr())

	resp := call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
		SrcAccountNo: "1001", DestHost: host, DestPort: port, DestAccountNo: "9999", Amount: 50,
	})
	require.False(t, resp.IsOK())
	require.True(t, strings.HasPrefix(resp.Error, "destination prepare failed: "), resp.Error)
	require.True(t, strings.Contains(resp.Error, "destination account not found"), resp.Error)

	assert.Equal(t, balanceOf(t, src, "1001"), 1000.0)
	rows, err := src.store.ListPending()
	require.NoError(t, err)
	assert.Equal(t, len(rows), 0)
}

func TestTransferValidation(t *testing.T) {
	src := newTestBranch(t, "A", nil)

	resp := call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
		SrcAccountNo: "1001", DestHost: "127.0.0.1", DestPort: 9000, DestAccountNo: "1002", Amount: -3,
	})
	assert.Equal(t, resp.Error, "invalid amount")

	resp = call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
		SrcAccountNo: "1001", DestAccountNo: "1002", Amount: 3,
	})
	assert.Equal(t, resp.Error, "missing parameters")
}

// A transfer routed back to the originating branch shares one txid between
// both 2PC legs, and pending_tx keys on txid alone: the deposit prepare
// replaces the withdraw row, so the local commit finds nothing to apply.
// The round fails, but money is conserved and no journal entry leaks.
func TestTransferToOwnBranchFailsConserved(t *testing.T) {
	src := newTestBranch(t, "A", nil)
	host, port := splitAddr(t, src.Addr())

	resp := call(t, src.Addr(), configs.ActionInterBranchTransfer, &network.TransferParams{
		SrcAccountNo: "1001", DestHost: host, DestPort: port, DestAccountNo: "1002", Amount: 100,
	})
	require.False(t, resp.IsOK())
	require.True(t, strings.HasPrefix(resp.Error, "local commit failed: "), resp.Error)
	require.True(t, strings.Contains(resp.Error, "no such tx"), resp.Error)

	assert.Equal(t, balanceOf(t, src, "1001"), 1000.0)
	assert.Equal(t, balanceOf(t, src, "1002"), 1000.0)

	// the best-effort abort_deposit released the surviving row.
	rows, err := src.store.ListPending()
	require.NoError(t, err)
	assert.Equal(t, len(rows), 0)
}
