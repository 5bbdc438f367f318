package branch

import (
	"FB/configs"
	"FB/network"
	"FB/storage"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Replicator ships committed writes to the configured replicas, best effort.
// Failures never surface to the client that triggered the write; they only
// count in the stats.

type replJob struct {
	payload *network.ReplicatePayload
	done    chan struct{}
}

type Replicator struct {
	stmt     *Context
	replicas []string
	queue    chan *replJob
	seq      uint64
	wg       sync.WaitGroup

	// mu fences Enqueue against Stop: a handler still running while the
	// branch shuts down must not send on the closed queue.
	mu     sync.RWMutex
	closed bool
}

func NewReplicator(stmt *Context, replicas []string) *Replicator {
	return &Replicator{
		stmt:     stmt,
		replicas: replicas,
		queue:    make(chan *replJob, configs.ReplQueueSize),
		// seeded from the clock so seq stays monotonic across restarts.
		seq: uint64(time.Now().UnixNano()),
	}
}

func (r *Replicator) Start() {
	if len(r.replicas) == 0 {
		return
	}
	r.wg.Add(1)
	go r.dispatch()
}

func (r *Replicator) Stop() {
	if len(r.replicas) == 0 {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

// Enqueue hands one committed write to the dispatcher. With SyncReplication
// the call blocks until every replica has been attempted, which test code
// uses to assert on replica state.
func (r *Replicator) Enqueue(action string, params interface{}) {
	if len(r.replicas) == 0 {
		return
	}
	raw, err := json.Marshal(params)
	if err != nil {
		configs.Warn(false, err.Error())
		return
	}
	job := &replJob{payload: &network.ReplicatePayload{
		Action: action,
		Params: raw,
		Origin: r.stmt.name,
		Seq:    atomic.AddUint64(&r.seq, 1),
	}}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		configs.Warn(false, "replicator stopped, dropping "+action)
		return
	}
	if configs.SyncReplication {
		job.done = make(chan struct{})
		r.queue <- job
		<-job.done
		return
	}
	select {
	case r.queue <- job:
	default:
		r.stmt.stats.IncReplFailure()
		configs.Warn(false, "replication queue full, dropping "+action)
	}
}

func (r *Replicator) dispatch() {
	defer r.wg.Done()
	for job := range r.queue {
		r.ship(job.payload)
		if job.done != nil {
			close(job.done)
		}
	}
}

func (r *Replicator) ship(payload *network.ReplicatePayload) {
	for _, addr := range r.replicas {
		ok := false
		for attempt := 0; attempt < configs.ReplRetry; attempt++ {
			resp := network.SendRequest(addr, configs.ActionReplicate, payload, configs.ReplTimeout)
			if resp.IsOK() {
				ok = true
				break
			}
			configs.DPrintf("replicate %s to %s failed: %s", payload.Action, addr, resp.Error)
			time.Sleep(configs.ReplRetryInterval)
		}
		if !ok {
			r.stmt.stats.IncReplFailure()
			configs.Warn(false, "replication of "+payload.Action+" to "+addr+" gave up")
		}
	}
}

// handleReplicate applies one replicated write on a replica. Only
// create_account, deposit and withdraw move state; anything else is a no-op
// answered ok so a newer primary never stalls on an older replica.
func (ctx *Context) handleReplicate(params json.RawMessage) *network.Response {
	var p network.ReplicateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return network.Errorf("%v", err)
	}
	payload := p.Payload()

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	// Retries can deliver the same message twice; the per-origin watermark
	// keeps a duplicate from applying the write again.
	if payload.Origin != "" && payload.Seq > 0 {
		last, err := ctx.store.LastReplSeq(payload.Origin)
		if err != nil {
			return network.Errorf("%v", err)
		}
		if payload.Seq <= last {
			configs.DPrintf("skipping duplicate replicate seq %d from %s", payload.Seq, payload.Origin)
			return network.Ok(nil)
		}
	}

	switch payload.Action {
	case configs.ActionCreateAccount:
		var cp network.CreateAccountParams
		if err := json.Unmarshal(payload.Params, &cp); err != nil {
			return network.Errorf("%v", err)
		}
		acct, err := ctx.store.GetAccount(cp.AccountNo)
		if err != nil {
			return network.Errorf("%v", err)
		}
		if acct == nil {
			err = ctx.store.InsertAccount(&storage.Account{
				AccountNo: cp.AccountNo, Name: cp.Name, Balance: cp.Balance,
			})
			if err != nil {
				return network.Errorf("%v", err)
			}
		}
	case configs.ActionDeposit, configs.ActionWithdraw:
		var ap network.AmountParams
		if err := json.Unmarshal(payload.Params, &ap); err != nil {
			return network.Errorf("%v", err)
		}
		acct, err := ctx.store.GetAccount(ap.AccountNo)
		if err != nil {
			return network.Errorf("%v", err)
		}
		if acct != nil {
			newBal := acct.Balance + ap.Amount
			if payload.Action == configs.ActionWithdraw {
				newBal = acct.Balance - ap.Amount
			}
			if err = ctx.store.UpdateBalance(ap.AccountNo, newBal); err != nil {
				return network.Errorf("%v", err)
			}
		}
	}

	if payload.Origin != "" && payload.Seq > 0 {
		if err := ctx.store.SetReplSeq(payload.Origin, payload.Seq); err != nil {
			return network.Errorf("%v", err)
		}
	}
	return network.Ok(nil)
}
