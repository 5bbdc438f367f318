package storage

import (
	"database/sql"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default embedded backend: one database file per branch
// in the working directory, a single shared connection in auto-commit mode.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(name, dir string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, name+".db"))
	if err != nil {
		return nil, err
	}
	// The connection is shared across workers; the branch mutex serializes
	// use, the driver only needs to never hand out a second one.
	db.SetMaxOpenConns(1)
	c := &SQLiteStore{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_no TEXT PRIMARY KEY,
			name TEXT,
			balance REAL
		)`,
		`CREATE TABLE IF NOT EXISTS pending_tx (
			txid TEXT PRIMARY KEY,
			account_no TEXT,
			amount REAL,
			type TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS repl_seq (
			branch TEXT PRIMARY KEY,
			seq INTEGER
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLiteStore) GetAccount(accountNo string) (*Account, error) {
	acc := &Account{}
	err := c.db.QueryRow("SELECT account_no, name, balance FROM accounts WHERE account_no = ?", accountNo).
		Scan(&acc.AccountNo, &acc.Name, &acc.Balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (c *SQLiteStore) InsertAccount(acc *Account) error {
	_, err := c.db.Exec("INSERT INTO accounts (account_no, name, balance) VALUES (?, ?, ?)",
		acc.AccountNo, acc.Name, acc.Balance)
	return err
}

func (c *SQLiteStore) UpdateBalance(accountNo string, balance float64) error {
	_, err := c.db.Exec("UPDATE accounts SET balance = ? WHERE account_no = ?", balance, accountNo)
	return err
}

func (c *SQLiteStore) ListAccounts() ([]Account, error) {
	rows, err := c.db.Query("SELECT account_no, name, balance FROM accounts ORDER BY account_no")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]Account, 0)
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.AccountNo, &acc.Name, &acc.Balance); err != nil {
			return nil, err
		}
		res = append(res, acc)
	}
	return res, rows.Err()
}

func (c *SQLiteStore) CountAccounts() (int, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n)
	return n, err
}

func (c *SQLiteStore) UpsertPending(p *PendingTx) error {
	_, err := c.db.Exec("INSERT OR REPLACE INTO pending_tx (txid, account_no, amount, type) VALUES (?, ?, ?, ?)",
		p.Txid, p.AccountNo, p.Amount, p.Type)
	return err
}

func (c *SQLiteStore) GetPending(txid, typ string) (*PendingTx, error) {
	p := &PendingTx{}
	err := c.db.QueryRow("SELECT txid, account_no, amount, type FROM pending_tx WHERE txid = ? AND type = ?",
		txid, typ).Scan(&p.Txid, &p.AccountNo, &p.Amount, &p.Type)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *SQLiteStore) DeletePending(txid string) error {
	_, err := c.db.Exec("DELETE FROM pending_tx WHERE txid = ?", txid)
	return err
}

func (c *SQLiteStore) DeletePendingTyped(txid, typ string) error {
	_, err := c.db.Exec("DELETE FROM pending_tx WHERE txid = ? AND type = ?", txid, typ)
	return err
}

func (c *SQLiteStore) ListPending() ([]PendingTx, error) {
	rows, err := c.db.Query("SELECT txid, account_no, amount, type FROM pending_tx")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]PendingTx, 0)
	for rows.Next() {
		var p PendingTx
		if err := rows.Scan(&p.Txid, &p.AccountNo, &p.Amount, &p.Type); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (c *SQLiteStore) PendingWithdrawTotal(accountNo, excludeTxid string) (float64, error) {
	var total sql.NullFloat64
	err := c.db.QueryRow(
		"SELECT SUM(amount) FROM pending_tx WHERE account_no = ? AND type = 'withdraw' AND txid != ?",
		accountNo, excludeTxid).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

func (c *SQLiteStore) LastReplSeq(origin string) (uint64, error) {
	var seq uint64
	err := c.db.QueryRow("SELECT seq FROM repl_seq WHERE branch = ?", origin).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (c *SQLiteStore) SetReplSeq(origin string, seq uint64) error {
	_, err := c.db.Exec("INSERT OR REPLACE INTO repl_seq (branch, seq) VALUES (?, ?)", origin, seq)
	return err
}

func (c *SQLiteStore) Close() error {
	return c.db.Close()
}
