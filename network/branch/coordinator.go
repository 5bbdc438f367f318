package branch

import (
	"FB/configs"
	"FB/network"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Coordinator side of the inter-branch transfer. The branch receiving this
// request acts as source and drives the 2PC round:
//
//	1) prepare the local withdraw
//	2) prepare the remote deposit
//	3) commit the local withdraw
//	4) commit the remote deposit
//
// Committing local-first narrows the window where money exists twice: a
// failure after step 3 leaves the source debited and the destination
// holding a pending deposit, surfaced to the caller as remote commit failed.
func (ctx *Context) handleInterBranchTransfer(params json.RawMessage) *network.Response {
	var p network.TransferParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("invalid amount")
	}
	if !network.ValidAmount(p.Amount) {
		return network.Errorf("invalid amount")
	}
	if p.SrcAccountNo == "" || p.DestHost == "" || p.DestPort <= 0 || p.DestAccountNo == "" {
		return network.Errorf("missing parameters")
	}
	destAddr := p.DestHost + ":" + strconv.Itoa(p.DestPort)

	txid := ctx.name + "-" + uuid.New().String()
	ctx.inFlight.Add(txid)
	defer ctx.inFlight.Remove(txid)
	ctx.logs.WriteTxnState(txid, configs.TxnStateBegin)

	txn := &network.TxnParams{Txid: txid, AccountNo: p.SrcAccountNo, Amount: p.Amount}
	raw, err := json.Marshal(txn)
	if err != nil {
		return network.Errorf("%v", err)
	}
	prepLocal := ctx.handlePrepareWithdraw(raw)
	if !prepLocal.IsOK() {
		ctx.logs.WriteTxnState(txid, configs.TxnStateAborted)
		ctx.stats.IncAbort()
		return network.Errorf("local prepare failed: " + prepLocal.String())
	}

	resp := network.SendRequest(destAddr, configs.ActionPrepareDeposit,
		&network.TxnParams{Txid: txid, AccountNo: p.DestAccountNo, Amount: p.Amount}, configs.RPCTimeout)
	if !resp.IsOK() {
		abortRaw, _ := json.Marshal(&network.TxnParams{Txid: txid})
		ctx.handleAbortWithdraw(abortRaw)
		ctx.logs.WriteTxnState(txid, configs.TxnStateAborted)
		ctx.stats.IncAbort()
		return network.Errorf("destination prepare failed: " + resp.String())
	}

	commitRaw, err := json.Marshal(&network.TxnParams{Txid: txid})
	if err != nil {
		return network.Errorf("%v", err)
	}
	commitLocal := ctx.handleCommitWithdraw(commitRaw)
	if !commitLocal.IsOK() {
		// best-effort release of the remote reservation.
		network.SendRequest(destAddr, configs.ActionAbortDeposit,
			&network.TxnParams{Txid: txid}, configs.RPCTimeout)
		ctx.logs.WriteTxnState(txid, configs.TxnStateAborted)
		ctx.stats.IncAbort()
		return network.Errorf("local commit failed: " + commitLocal.String())
	}

	commitRemote := network.SendRequest(destAddr, configs.ActionCommitDeposit,
		&network.TxnParams{Txid: txid}, configs.RPCTimeout)
	if !commitRemote.IsOK() {
		// the local withdraw is already durable; the destination keeps its
		// pending row until an operator or its next restart resolves it.
		ctx.logs.WriteTxnState(txid, configs.TxnStateAborted)
		ctx.stats.IncAbort()
		return network.Errorf("remote commit failed: " + commitRemote.String())
	}

	ctx.logs.WriteTxnState(txid, configs.TxnStateCommitted)
	ctx.stats.IncCommit()
	configs.TxnPrint(txid, "transfer of %v from %s to %s complete", p.Amount, p.SrcAccountNo, destAddr)
	return network.Ok(map[string]interface{}{
		"status": "transfer_complete",
		"txid":   txid,
		"amount": p.Amount,
		"from":   ctx.name + ":" + p.SrcAccountNo,
		"to":     p.DestHost + ":" + p.DestAccountNo,
	})
}
