package storage

import (
	"FB/configs"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/tidwall/wal"
)

// LogManager appends coordinator decisions to a write-ahead log. Recovery is
// presumed-abort and never replays this log; the entries are forensic
// evidence of which transfers reached a decision.
type LogManager struct {
	latch sync.Mutex
	lsn   uint64
	logs  *wal.Log
}

func NewLogManager(name, dir string) (*LogManager, error) {
	res := &LogManager{}
	if !configs.UseTxnLog {
		return res, nil
	}
	log, err := wal.Open(filepath.Join(dir, name+"-txnlog"), nil)
	if err != nil {
		return nil, err
	}
	res.logs = log
	res.lsn, err = log.LastIndex()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// WriteTxnState records a state transition for one transfer. Each entry is
// synced before the coordinator acts on the decision.
func (c *LogManager) WriteTxnState(txid, state string) {
	if c.logs == nil {
		return
	}
	c.latch.Lock()
	defer c.latch.Unlock()
	e := fmt.Sprintf("(t,%v,%v)", txid, state)
	c.lsn++
	err := c.logs.Write(c.lsn, []byte(e))
	configs.CheckError(err)
	configs.TxnPrint(txid, e)
}

func (c *LogManager) Close() {
	if c.logs == nil {
		return
	}
	c.latch.Lock()
	defer c.latch.Unlock()
	err := c.logs.Close()
	configs.CheckError(err)
}
