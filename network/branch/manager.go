package branch

import (
	"FB/configs"
	"FB/network"
	"FB/storage"

	"github.com/goccy/go-json"
)

// Immediate operations. These commit in one round trip; only the 2PC verbs
// in participant.go stage state across calls.

// spendable is the balance minus the amounts reserved by yes-voted withdraw
// prepares. excludeTxid keeps a transaction from counting its own reservation.
func (ctx *Context) spendable(acct *storage.Account, excludeTxid string) (float64, error) {
	reserved, err := ctx.store.PendingWithdrawTotal(acct.AccountNo, excludeTxid)
	if err != nil {
		return 0, err
	}
	return acct.Balance - reserved, nil
}

func (ctx *Context) handleCreateAccount(params json.RawMessage) *network.Response {
	var p network.CreateAccountParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("%v", err)
	}
	if p.AccountNo == "" {
		return network.Errorf("missing account_no")
	}
	ctx.mu.Lock()
	acct, err := ctx.store.GetAccount(p.AccountNo)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if acct != nil {
		ctx.mu.Unlock()
		return network.Errorf("account exists")
	}
	err = ctx.store.InsertAccount(&storage.Account{AccountNo: p.AccountNo, Name: p.Name, Balance: p.Balance})
	ctx.mu.Unlock()
	if err != nil {
		return network.Errorf("%v", err)
	}
	ctx.repl.Enqueue(configs.ActionCreateAccount, &p)
	return network.Ok("account created")
}

func (ctx *Context) handleListAccounts(params json.RawMessage) *network.Response {
	ctx.mu.Lock()
	accounts, err := ctx.store.ListAccounts()
	ctx.mu.Unlock()
	if err != nil {
		return network.Errorf("%v", err)
	}
	return network.Ok(accounts)
}

func (ctx *Context) handleBalance(params json.RawMessage) *network.Response {
	var p network.AccountParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("%v", err)
	}
	if p.AccountNo == "" {
		return network.Errorf("missing account_no")
	}
	ctx.mu.Lock()
	acct, err := ctx.store.GetAccount(p.AccountNo)
	ctx.mu.Unlock()
	if err != nil {
		return network.Errorf("%v", err)
	}
	if acct == nil {
		return network.Errorf("account not found")
	}
	return network.Ok(map[string]interface{}{"balance": acct.Balance, "name": acct.Name})
}

func (ctx *Context) handleDeposit(params json.RawMessage) *network.Response {
	var p network.AmountParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("invalid amount")
	}
	if !network.ValidAmount(p.Amount) {
		return network.Errorf("invalid amount")
	}
	if p.AccountNo == "" {
		return network.Errorf("missing account_no")
	}
	ctx.mu.Lock()
	acct, err := ctx.store.GetAccount(p.AccountNo)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if acct == nil {
		ctx.mu.Unlock()
		return network.Errorf("account not found")
	}
	newBal := acct.Balance + p.Amount
	err = ctx.store.UpdateBalance(p.AccountNo, newBal)
	ctx.mu.Unlock()
	if err != nil {
		return network.Errorf("%v", err)
	}
	ctx.repl.Enqueue(configs.ActionDeposit, &p)
	return network.Ok(map[string]interface{}{"balance": newBal})
}

func (ctx *Context) handleWithdraw(params json.RawMessage) *network.Response {
	var p network.AmountParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("invalid amount")
	}
	if !network.ValidAmount(p.Amount) {
		return network.Errorf("invalid amount")
	}
	if p.AccountNo == "" {
		return network.Errorf("missing account_no")
	}
	ctx.mu.Lock()
	acct, err := ctx.store.GetAccount(p.AccountNo)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if acct == nil {
		ctx.mu.Unlock()
		return network.Errorf("account not found")
	}
	avail, err := ctx.spendable(acct, "")
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if avail < p.Amount {
		ctx.mu.Unlock()
		return network.Errorf("insufficient funds")
	}
	newBal := acct.Balance - p.Amount
	err = ctx.store.UpdateBalance(p.AccountNo, newBal)
	ctx.mu.Unlock()
	if err != nil {
		return network.Errorf("%v", err)
	}
	ctx.repl.Enqueue(configs.ActionWithdraw, &p)
	return network.Ok(map[string]interface{}{"balance": newBal})
}

func (ctx *Context) handleLocalTransfer(params json.RawMessage) *network.Response {
	var p network.LocalTransferParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("invalid amount")
	}
	if !network.ValidAmount(p.Amount) {
		return network.Errorf("invalid amount")
	}
	if p.SrcAccountNo == "" || p.DestAccountNo == "" {
		return network.Errorf("missing account numbers")
	}
	ctx.mu.Lock()
	src, err := ctx.store.GetAccount(p.SrcAccountNo)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	dest, err := ctx.store.GetAccount(p.DestAccountNo)
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if src == nil {
		ctx.mu.Unlock()
		return network.Errorf("source account not found")
	}
	if dest == nil {
		ctx.mu.Unlock()
		return network.Errorf("destination account not found")
	}
	avail, err := ctx.spendable(src, "")
	if err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if avail < p.Amount {
		ctx.mu.Unlock()
		return network.Errorf("insufficient funds")
	}
	newSrcBal := src.Balance - p.Amount
	newDestBal := dest.Balance + p.Amount
	if err = ctx.store.UpdateBalance(p.SrcAccountNo, newSrcBal); err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	if err = ctx.store.UpdateBalance(p.DestAccountNo, newDestBal); err != nil {
		ctx.mu.Unlock()
		return network.Errorf("%v", err)
	}
	ctx.mu.Unlock()
	ctx.repl.Enqueue(configs.ActionWithdraw, &network.AmountParams{AccountNo: p.SrcAccountNo, Amount: p.Amount})
	ctx.repl.Enqueue(configs.ActionDeposit, &network.AmountParams{AccountNo: p.DestAccountNo, Amount: p.Amount})
	return network.Ok(map[string]interface{}{
		"from":   map[string]interface{}{"account": p.SrcAccountNo, "balance": newSrcBal},
		"to":     map[string]interface{}{"account": p.DestAccountNo, "balance": newDestBal},
		"amount": p.Amount,
	})
}
