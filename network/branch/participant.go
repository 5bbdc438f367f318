package branch

import (
	"FB/configs"
	"FB/network"
	"FB/storage"

	"github.com/goccy/go-json"
)

// 2PC participant verbs. A prepare journals a pending row and reserves the
// funds through the spendable-balance check; the balance itself only moves
// at commit. Abort is idempotent: deleting a missing row still answers ok,
// so a coordinator can retry aborts blindly.

func (ctx *Context) handlePrepareWithdraw(params json.RawMessage) *network.Response {
	var p network.TxnParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("invalid amount")
	}
	if !network.ValidAmount(p.Amount) {
		return network.Errorf("invalid amount")
	}
	if p.Txid == "" || p.AccountNo == "" {
		return network.Errorf("missing txid/account_no")
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	acct, err := ctx.store.GetAccount(p.AccountNo)
	if err != nil {
		return network.Errorf("%v", err)
	}
	if acct == nil {
		return network.Errorf("insufficient funds or account not found")
	}
	avail, err := ctx.spendable(acct, p.Txid)
	if err != nil {
		return network.Errorf("%v", err)
	}
	if avail < p.Amount {
		return network.Errorf("insufficient funds or account not found")
	}
	err = ctx.store.UpsertPending(&storage.PendingTx{
		Txid: p.Txid, AccountNo: p.AccountNo, Amount: p.Amount, Type: configs.PendingWithdraw,
	})
	if err != nil {
		return network.Errorf("%v", err)
	}
	configs.TxnPrint(p.Txid, "prepared withdraw of %v from %s", p.Amount, p.AccountNo)
	return network.Ok(nil)
}

func (ctx *Context) handleCommitWithdraw(params json.RawMessage) *network.Response {
	var p network.TxnParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("%v", err)
	}
	if p.Txid == "" {
		return network.Errorf("missing txid")
	}
	ctx.mu.Lock()
	row, err := ctx.store.GetPending(p.Txid, configs.PendingWithdraw)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if row == nil {
		ctx.mu.Unlock()
		return network.Errorf("no such tx")
	}
	acct, err := ctx.store.GetAccount(row.AccountNo)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if acct == nil {
		ctx.store.DeletePending(p.Txid)
		ctx.mu.Unlock()
		return network.Errorf("account not found")
	}
	avail, err := ctx.spendable(acct, p.Txid)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if avail < row.Amount {
		ctx.store.DeletePending(p.Txid)
		ctx.mu.Unlock()
		return network.Errorf("insufficient funds at commit")
	}
	newBal := acct.Balance - row.Amount
	if err = ctx.store.UpdateBalance(row.AccountNo, newBal); err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if err = ctx.store.DeletePending(p.Txid); err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	ctx.mu.Unlock()
	configs.TxnPrint(p.Txid, "committed withdraw of %v from %s", row.Amount, row.AccountNo)
	ctx.repl.Enqueue(configs.ActionWithdraw, &network.AmountParams{AccountNo: row.AccountNo, Amount: row.Amount})
	return network.Ok(nil)
}

func (ctx *Context) handleAbortWithdraw(params json.RawMessage) *network.Response {
	var p network.TxnParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("%v", err)
	}
	if p.Txid == "" {
		return network.Errorf("missing txid")
	}
	ctx.mu.Lock()
	err := ctx.store.DeletePendingTyped(p.Txid, configs.PendingWithdraw)
	ctx.mu.Unlock()
	if err != nil {
		return network.Errorf("%v", err)
	}
	configs.TxnPrint(p.Txid, "aborted withdraw")
	return network.Ok(nil)
}

func (ctx *Context) handlePrepareDeposit(params json.RawMessage) *network.Response {
	var p network.TxnParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("invalid amount")
	}
	if !network.ValidAmount(p.Amount) {
		return network.Errorf("invalid amount")
	}
	if p.Txid == "" || p.AccountNo == "" {
		return network.Errorf("missing txid/account_no")
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	acct, err := ctx.store.GetAccount(p.AccountNo)
	if err != nil {
		return network.Errorf("%v", err)
	}
	if acct == nil {
		return network.Errorf("destination account not found")
	}
	err = ctx.store.UpsertPending(&storage.PendingTx{
		Txid: p.Txid, AccountNo: p.AccountNo, Amount: p.Amount, Type: configs.PendingDeposit,
	})
	if err != nil {
		return network.Errorf("%v", err)
	}
	configs.TxnPrint(p.Txid, "prepared deposit of %v to %s", p.Amount, p.AccountNo)
	return network.Ok(nil)
}

func (ctx *Context) handleCommitDeposit(params json.RawMessage) *network.Response {
	var p network.TxnParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("%v", err)
	}
	if p.Txid == "" {
		return network.Errorf("missing txid")
	}
	ctx.mu.Lock()
	row, err := ctx.store.GetPending(p.Txid, configs.PendingDeposit)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if row == nil {
		ctx.mu.Unlock()
		return network.Errorf("no such tx")
	}
	acct, err := ctx.store.GetAccount(row.AccountNo)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if acct == nil {
		ctx.store.DeletePending(p.Txid)
		ctx.mu.Unlock()
		return network.Errorf("account not found")
	}
	newBal := acct.Balance + row.Amount
	if err = ctx.store.UpdateBalance(row.AccountNo, newBal); err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if err = ctx.store.DeletePending(p.Txid); err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	ctx.mu.Unlock()
	configs.TxnPrint(p.Txid, "committed deposit of %v to %s", row.Amount, row.AccountNo)
	ctx.repl.Enqueue(configs.ActionDeposit, &network.AmountParams{AccountNo: row.AccountNo, Amount: row.Amount})
	return network.Ok(nil)
}

func (ctx *Context) handleAbortDeposit(params json.RawMessage) *network.Response {
	var p network.TxnParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("%v", err)
	}
	if p.Txid == "" {
		return network.Errorf("missing txid")
	}
	ctx.mu.Lock()
	err := ctx.store.DeletePendingTyped(p.Txid, configs.PendingDeposit)
	ctx.mu.Unlock()
	if err != nil {
		return network.Errorf("%v", err)
	}
	configs.TxnPrint(p.Txid, "aborted deposit")
	return network.Ok(nil)
}
