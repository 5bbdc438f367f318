package branch

import (
	"strconv"
	"sync/atomic"

	"FB/configs"
)

// Stat counts what a branch has served since startup.
type Stat struct {
	nodeID       string
	requests     uint64
	commits      uint64
	aborts       uint64
	replFailures uint64
}

func NewStat(nodeID string) *Stat {
	return &Stat{nodeID: nodeID}
}

func (st *Stat) IncRequest()     { atomic.AddUint64(&st.requests, 1) }
func (st *Stat) IncCommit()      { atomic.AddUint64(&st.commits, 1) }
func (st *Stat) IncAbort()       { atomic.AddUint64(&st.aborts, 1) }
func (st *Stat) IncReplFailure() { atomic.AddUint64(&st.replFailures, 1) }

func (st *Stat) Requests() uint64     { return atomic.LoadUint64(&st.requests) }
func (st *Stat) Commits() uint64      { return atomic.LoadUint64(&st.commits) }
func (st *Stat) Aborts() uint64       { return atomic.LoadUint64(&st.aborts) }
func (st *Stat) ReplFailures() uint64 { return atomic.LoadUint64(&st.replFailures) }

func (st *Stat) Log() {
	msg := "node:" + st.nodeID + ";"
	msg += "requests:" + strconv.FormatUint(st.Requests(), 10) + ";"
	msg += "commits:" + strconv.FormatUint(st.Commits(), 10) + ";"
	msg += "aborts:" + strconv.FormatUint(st.Aborts(), 10) + ";"
	msg += "repl_failures:" + strconv.FormatUint(st.ReplFailures(), 10) + ";"
	configs.TPrintf(msg)
}
