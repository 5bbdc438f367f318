package branch

import (
	"testing"

	"FB/configs"
	"FB/network"

	"github.com/magiconair/properties/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareWithdrawReservesFunds(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: 800})
	require.True(t, resp.IsOK(), resp.Error)

	// balance is untouched until commit.
	assert.Equal(t, balanceOf(t, stmt, "1001"), 1000.0)

	// but the reservation blocks an immediate withdraw that would starve it.
	resp = do(t, stmt, configs.ActionWithdraw, &network.AmountParams{AccountNo: "1001", Amount: 300})
	assert.Equal(t, resp.Error, "insufficient funds")

	// there is still room for the rest.
	resp = do(t, stmt, configs.ActionWithdraw, &network.AmountParams{AccountNo: "1001", Amount: 200})
	require.True(t, resp.IsOK(), resp.Error)

	resp = do(t, stmt, configs.ActionCommitWithdraw, &network.TxnParams{Txid: "t1"})
	require.True(t, resp.IsOK(), resp.Error)
	assert.Equal(t, balanceOf(t, stmt, "1001"), 0.0)
}

func TestPrepareWithdrawRejections(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "9999", Amount: 10})
	assert.Equal(t, resp.Error, "insufficient funds or account not found")

	resp = do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: 2000})
	assert.Equal(t, resp.Error, "insufficient funds or account not found")

	resp = do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{AccountNo: "1001", Amount: 10})
	assert.Equal(t, resp.Error, "missing txid/account_no")

	resp = do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: -4})
	assert.Equal(t, resp.Error, "invalid amount")
}

func TestRePrepareOverwrites(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: 900})
	require.True(t, resp.IsOK(), resp.Error)

	// same txid again with a different amount: the old reservation must not
	// count against the new prepare.
	resp = do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: 950})
	require.True(t, resp.IsOK(), resp.Error)

	row, err := stmt.store.GetPending("t1", configs.PendingWithdraw)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, row.Amount, 950.0)
}

func TestAbortWithdrawIdempotent(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: 100})
	require.True(t, resp.IsOK(), resp.Error)

	resp = do(t, stmt, configs.ActionAbortWithdraw, &network.TxnParams{Txid: "t1"})
	require.True(t, resp.IsOK())
	// aborting again, or aborting an unknown txid, still answers ok.
	resp = do(t, stmt, configs.ActionAbortWithdraw, &network.TxnParams{Txid: "t1"})
	require.True(t, resp.IsOK())
	resp = do(t, stmt, configs.ActionAbortWithdraw, &network.TxnParams{Txid: "never-seen"})
	require.True(t, resp.IsOK())

	assert.Equal(t, balanceOf(t, stmt, "1001"), 1000.0)

	// the reservation is gone.
	resp = do(t, stmt, configs.ActionWithdraw, &network.AmountParams{AccountNo: "1001", Amount: 1000})
	require.True(t, resp.IsOK(), resp.Error)
}

func TestCommitWithoutPrepare(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionCommitWithdraw, &network.TxnParams{Txid: "ghost"})
	assert.Equal(t, resp.Error, "no such tx")
	resp = do(t, stmt, configs.ActionCommitDeposit, &network.TxnParams{Txid: "ghost"})
	assert.Equal(t, resp.Error, "no such tx")

	resp = do(t, stmt, configs.ActionCommitWithdraw, &network.TxnParams{})
	assert.Equal(t, resp.Error, "missing txid")
}

func TestAbortTypeMismatchKeepsRow(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: 100})
	require.True(t, resp.IsOK(), resp.Error)

	// abort_deposit with a withdraw txid must not release the withdraw row.
	resp = do(t, stmt, configs.ActionAbortDeposit, &network.TxnParams{Txid: "t1"})
	require.True(t, resp.IsOK())

	row, err := stmt.store.GetPending("t1", configs.PendingWithdraw)
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestPrepareCommitDeposit(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionPrepareDeposit,
		&network.TxnParams{Txid: "t1", AccountNo: "9999", Amount: 50})
	assert.Equal(t, resp.Error, "destination account not found")

	resp = do(t, stmt, configs.ActionPrepareDeposit,
		&network.TxnParams{Txid: "t1", AccountNo: "1002", Amount: 50})
	require.True(t, resp.IsOK(), resp.Error)
	assert.Equal(t, balanceOf(t, stmt, "1002"), 1000.0)

	resp = do(t, stmt, configs.ActionCommitDeposit, &network.TxnParams{Txid: "t1"})
	require.True(t, resp.IsOK(), resp.Error)
	assert.Equal(t, balanceOf(t, stmt, "1002"), 1050.0)

	// the pending row is consumed.
	resp = do(t, stmt, configs.ActionCommitDeposit, &network.TxnParams{Txid: "t1"})
	assert.Equal(t, resp.Error, "no such tx")
}

func TestCommitWithdrawAfterDrain(t *testing.T) {
	stmt := newTestBranch(t, "A", nil)

	resp := do(t, stmt, configs.ActionPrepareWithdraw,
		&network.TxnParams{Txid: "t1", AccountNo: "1001", Amount: 800})
	require.True(t, resp.IsOK(), resp.Error)

	// drain the balance below the reservation behind the guard's back.
	require.NoError(t, stmt.store.UpdateBalance("1001", 500))

	resp = do(t, stmt, configs.ActionCommitWithdraw, &network.TxnParams{Txid: "t1"})
	assert.Equal(t, resp.Error, "insufficient funds at commit")

	// the failed commit cleans up its pending row.
	row, err := stmt.store.GetPending("t1", configs.PendingWithdraw)
	require.NoError(t, err)
	require.Nil(t, row)
}
