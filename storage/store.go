package storage

import (
	"FB/configs"
	"fmt"
)

// Account is one row of the accounts table.
type Account struct {
	AccountNo string  `json:"account_no"`
	Name      string  `json:"name"`
	Balance   float64 `json:"balance"`
}

// PendingTx is a journaled 2PC intent: the row exists between a successful
// prepare and the matching commit or abort.
type PendingTx struct {
	Txid      string  `json:"txid"`
	AccountNo string  `json:"account_no"`
	Amount    float64 `json:"amount"`
	Type      string  `json:"type"`
}

// Store is the durability boundary of a branch. All mutations run under the
// branch mutex, so implementations only need statement atomicity; once a
// call returns nil the change is on disk.
type Store interface {
	GetAccount(accountNo string) (*Account, error) // (nil, nil) when absent
	InsertAccount(acc *Account) error
	UpdateBalance(accountNo string, balance float64) error
	ListAccounts() ([]Account, error)
	CountAccounts() (int, error)

	UpsertPending(p *PendingTx) error
	GetPending(txid, typ string) (*PendingTx, error)
	DeletePending(txid string) error
	DeletePendingTyped(txid, typ string) error
	ListPending() ([]PendingTx, error)
	// PendingWithdrawTotal sums the withdraw-typed pending amounts against
	// one account, skipping excludeTxid so a re-prepare does not count its
	// own previous row.
	PendingWithdrawTotal(accountNo, excludeTxid string) (float64, error)

	LastReplSeq(origin string) (uint64, error)
	SetReplSeq(origin string, seq uint64) error

	Close() error
}

// Open builds the store selected by configs.StorageType for one branch.
func Open(name, dir string) (Store, error) {
	switch configs.StorageType {
	case configs.SQLite:
		return OpenSQLite(name, dir)
	case configs.PostgreSQL:
		return OpenPostgres(name)
	case configs.MongoDB:
		return OpenMongo(name)
	default:
		return nil, fmt.Errorf("unknown storage type %q", configs.StorageType)
	}
}
