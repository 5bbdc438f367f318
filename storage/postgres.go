package storage

import (
	"FB/configs"
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresStore keeps one schema per branch so several branches can share a
// single server during tests. Selected with -store=sql.
type PostgresStore struct {
	ctx    context.Context
	pool   *pgxpool.Pool
	schema string
}

func OpenPostgres(name string) (*PostgresStore, error) {
	ctx := context.TODO()
	config, err := pgxpool.ParseConfig(configs.PostgresLink)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	c := &PostgresStore{ctx: ctx, pool: pool, schema: "branch_" + name}
	if err := c.initSchema(); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresStore) mustExec(sql string) error {
	_, err := c.pool.Exec(c.ctx, sql)
	return err
}

func (c *PostgresStore) initSchema() error {
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", c.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.accounts (
			account_no VARCHAR(255) PRIMARY KEY, name VARCHAR(255), balance DOUBLE PRECISION)`, c.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.pending_tx (
			txid VARCHAR(255) PRIMARY KEY, account_no VARCHAR(255), amount DOUBLE PRECISION, type VARCHAR(16))`, c.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.repl_seq (
			branch VARCHAR(255) PRIMARY KEY, seq BIGINT)`, c.schema),
	}
	for _, s := range stmts {
		if err := c.mustExec(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *PostgresStore) GetAccount(accountNo string) (*Account, error) {
	acc := &Account{}
	err := c.pool.QueryRow(c.ctx,
		fmt.Sprintf("SELECT account_no, name, balance FROM %s.accounts WHERE account_no = $1", c.schema),
		accountNo).Scan(&acc.AccountNo, &acc.Name, &acc.Balance)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (c *PostgresStore) InsertAccount(acc *Account) error {
	_, err := c.pool.Exec(c.ctx,
		fmt.Sprintf("INSERT INTO %s.accounts (account_no, name, balance) VALUES ($1, $2, $3)", c.schema),
		acc.AccountNo, acc.Name, acc.Balance)
	return err
}

func (c *PostgresStore) UpdateBalance(accountNo string, balance float64) error {
	_, err := c.pool.Exec(c.ctx,
		fmt.Sprintf("UPDATE %s.accounts SET balance = $2 WHERE account_no = $1", c.schema),
		accountNo, balance)
	return err
}

func (c *PostgresStore) ListAccounts() ([]Account, error) {
	rows, err := c.pool.Query(c.ctx,
		fmt.Sprintf("SELECT account_no, name, balance FROM %s.accounts ORDER BY account_no", c.schema))
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

func (c *PostgresStore) CountAccounts() (int, error) {
	var n int
	err := c.pool.QueryRow(c.ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s.accounts", c.schema)).Scan(&n)
	return n, err
}

func (c *PostgresStore) UpsertPending(p *PendingTx) error {
	_, err := c.pool.Exec(c.ctx,
		fmt.Sprintf(`INSERT INTO %s.pending_tx (txid, account_no, amount, type) VALUES ($1, $2, $3, $4)
			ON CONFLICT (txid) DO UPDATE SET account_no = $2, amount = $3, type = $4`, c.schema),
		p.Txid, p.AccountNo, p.Amount, p.Type)
	return err
}

func (c *PostgresStore) GetPending(txid, typ string) (*PendingTx, error) {
	p := &PendingTx{}
	err := c.pool.QueryRow(c.ctx,
		fmt.Sprintf("SELECT txid, account_no, amount, type FROM %s.pending_tx WHERE txid = $1 AND type = $2", c.schema),
		txid, typ).Scan(&p.Txid, &p.AccountNo, &p.Amount, &p.Type)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *PostgresStore) DeletePending(txid string) error {
	_, err := c.pool.Exec(c.ctx,
		fmt.Sprintf("DELETE FROM %s.pending_tx WHERE txid = $1", c.schema), txid)
	return err
}

func (c *PostgresStore) DeletePendingTyped(txid, typ string) error {
	_, err := c.pool.Exec(c.ctx,
		fmt.Sprintf("DELETE FROM %s.pending_tx WHERE txid = $1 AND type = $2", c.schema), txid, typ)
	return err
}

func (c *PostgresStore) ListPending() ([]PendingTx, error) {
	rows, err := c.pool.Query(c.ctx,
		fmt.Sprintf("SELECT txid, account_no, amount, type FROM %s.pending_tx", c.schema))
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

func (c *PostgresStore) PendingWithdrawTotal(accountNo, excludeTxid string) (float64, error) {
	var total float64
	err := c.pool.QueryRow(c.ctx,
		fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM %s.pending_tx WHERE account_no = $1 AND type = 'withdraw' AND txid != $2", c.schema),
		accountNo, excludeTxid).Scan(&total)
	return total, err
}

func (c *PostgresStore) LastReplSeq(origin string) (uint64, error) {
	var seq uint64
	err := c.pool.QueryRow(c.ctx,
		fmt.Sprintf("SELECT seq FROM %s.repl_seq WHERE branch = $1", c.schema), origin).Scan(&seq)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (c *PostgresStore) SetReplSeq(origin string, seq uint64) error {
	_, err := c.pool.Exec(c.ctx,
		fmt.Sprintf(`INSERT INTO %s.repl_seq (branch, seq) VALUES ($1, $2)
			ON CONFLICT (branch) DO UPDATE SET seq = $2`, c.schema),
		origin, seq)
	return err
}

func (c *PostgresStore) Close() error {
	c.pool.Close()
	return nil
}
