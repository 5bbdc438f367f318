package branch

import (
	"FB/configs"
	"FB/network"
	"FB/storage"
	"errors"
	"fmt"
	"strconv"

	set "github.com/deckarep/golang-set"
	"github.com/goccy/go-json"
	"github.com/viney-shih/go-lock"
)

// Options the startup parameters of one branch server.
type Options struct {
	Host     string
	Port     int
	Name     string
	Preload  bool
	Replicas []string
	Dir      string
}

// Context records the running state of a branch: the store, the decision
// log, the replication pipeline and the live listener. One Context serves
// both participant and coordinator roles.
type Context struct {
	name    string
	address string
	dir     string

	// mu serializes every state mutation; the store below it only needs
	// statement atomicity.
	mu lock.Mutex

	store storage.Store
	logs  *storage.LogManager
	repl  *Replicator

	// inFlight tracks the txids this branch currently coordinates.
	inFlight set.Set

	handlers map[string]func(params json.RawMessage) *network.Response
	stats    *Stat

	conn *Comm
}

type handlerFunc = func(params json.RawMessage) *network.Response

// NewBranch opens the store, rolls back the pending transactions left by a
// previous run and binds the listener. The server does not accept requests
// until Run is called.
func NewBranch(opt *Options) (*Context, error) {
	if opt.Name == "" {
		return nil, errors.New("branch name required")
	}
	if opt.Port <= 0 {
		return nil, errors.New("branch port required")
	}
	host := opt.Host
	if host == "" {
		host = "127.0.0.1"
	}
	dir := opt.Dir
	if dir == "" {
		dir = "."
	}
	stmt := &Context{
		name:     opt.Name,
		address:  host + ":" + strconv.Itoa(opt.Port),
		dir:      dir,
		mu:       lock.NewCASMutex(),
		inFlight: set.NewSet(),
		stats:    NewStat(opt.Name),
	}
	var err error
	stmt.store, err = storage.Open(opt.Name, dir)
	if err != nil {
		return nil, err
	}
	if opt.Preload {
		if err = stmt.preload(); err != nil {
			stmt.store.Close()
			return nil, err
		}
	}
	if err = stmt.recoverPending(); err != nil {
		stmt.store.Close()
		return nil, err
	}
	stmt.logs, err = storage.NewLogManager(opt.Name, dir)
	if err != nil {
		stmt.store.Close()
		return nil, err
	}
	stmt.repl = NewReplicator(stmt, opt.Replicas)
	stmt.registerHandlers()
	stmt.conn, err = NewConns(stmt, stmt.address)
	if err != nil {
		stmt.logs.Close()
		stmt.store.Close()
		return nil, err
	}
	stmt.repl.Start()
	configs.DPrintf("branch %s listening on %s", stmt.name, stmt.address)
	return stmt, nil
}

// preload seeds two demo accounts on an empty store, so a fresh cluster can
// serve transfers without a manual create step.
func (ctx *Context) preload() error {
	n, err := ctx.store.CountAccounts()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for i, accountNo := range []string{"1001", "1002"} {
		err = ctx.store.InsertAccount(&storage.Account{
			AccountNo: accountNo,
			Name:      fmt.Sprintf("User_%s_%d", ctx.name, i+1),
			Balance:   configs.PreloadBalance,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// recoverPending implements presumed abort: any pending row that survived a
// crash belongs to a transfer whose outcome this branch never learned, and
// without a commit record the only safe decision is to roll it back.
func (ctx *Context) recoverPending() error {
	rows, err := ctx.store.ListPending()
	if err != nil {
		return err
	}
	for _, p := range rows {
		configs.TxnPrint(p.Txid, "rolled back pending %s of %v on %s at startup", p.Type, p.Amount, p.AccountNo)
		if err = ctx.store.DeletePending(p.Txid); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) registerHandlers() {
	ctx.handlers = map[string]handlerFunc{
		configs.ActionCreateAccount:       ctx.handleCreateAccount,
		configs.ActionListAccounts:        ctx.handleListAccounts,
		configs.ActionBalance:             ctx.handleBalance,
		configs.ActionDeposit:             ctx.handleDeposit,
		configs.ActionWithdraw:            ctx.handleWithdraw,
		configs.ActionLocalTransfer:       ctx.handleLocalTransfer,
		configs.ActionPrepareWithdraw:     ctx.handlePrepareWithdraw,
		configs.ActionCommitWithdraw:      ctx.handleCommitWithdraw,
		configs.ActionAbortWithdraw:       ctx.handleAbortWithdraw,
		configs.ActionPrepareDeposit:      ctx.handlePrepareDeposit,
		configs.ActionCommitDeposit:       ctx.handleCommitDeposit,
		configs.ActionAbortDeposit:        ctx.handleAbortDeposit,
		configs.ActionInterBranchTransfer: ctx.handleInterBranchTransfer,
		configs.ActionReplicate:           ctx.handleReplicate,
	}
}

// Run blocks serving requests until Close is called.
func (ctx *Context) Run() {
	ctx.conn.Run()
}

// Addr the address the branch listens on.
func (ctx *Context) Addr() string {
	return ctx.address
}

// Close stops the listener, drains the replicator and releases the store.
func (ctx *Context) Close() {
	configs.TPrintf("Close called at " + ctx.address)
	ctx.conn.Stop()
	ctx.repl.Stop()
	ctx.stats.Log()
	ctx.logs.Close()
	configs.CheckError(ctx.store.Close())
}
