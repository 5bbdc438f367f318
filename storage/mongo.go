package storage

import (
	"FB/configs"
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore keeps one database per branch. Selected with -store=mongo.
type MongoStore struct {
	ctx      context.Context
	client   *mongo.Client
	accounts *mongo.Collection
	pending  *mongo.Collection
	replSeq  *mongo.Collection
}

type mongoAccount struct {
	AccountNo string  `bson:"_id"`
	Name      string  `bson:"name"`
	Balance   float64 `bson:"balance"`
}

type mongoPending struct {
	Txid      string  `bson:"_id"`
	AccountNo string  `bson:"account_no"`
	Amount    float64 `bson:"amount"`
	Type      string  `bson:"type"`
}

type mongoReplSeq struct {
	Branch string `bson:"_id"`
	Seq    uint64 `bson:"seq"`
}

func OpenMongo(name string) (*MongoStore, error) {
	ctx := context.TODO()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(configs.MongoDBLink))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}
	db := client.Database("bank_" + name)
	return &MongoStore{
		ctx:      ctx,
		client:   client,
		accounts: db.Collection("accounts"),
		pending:  db.Collection("pending_tx"),
		replSeq:  db.Collection("repl_seq"),
	}, nil
}

func (c *MongoStore) GetAccount(accountNo string) (*Account, error) {
	rec := mongoAccount{}
	err := c.accounts.FindOne(c.ctx, bson.M{"_id": accountNo}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Account{AccountNo: rec.AccountNo, Name: rec.Name, Balance: rec.Balance}, nil
}

func (c *MongoStore) InsertAccount(acc *Account) error {
	_, err := c.accounts.InsertOne(c.ctx,
		mongoAccount{AccountNo: acc.AccountNo, Name: acc.Name, Balance: acc.Balance})
	return err
}

func (c *MongoStore) UpdateBalance(accountNo string, balance float64) error {
	_, err := c.accounts.UpdateOne(c.ctx, bson.M{"_id": accountNo},
		bson.M{"$set": bson.M{"balance": balance}})
	return err
}

func (c *MongoStore) ListAccounts() ([]Account, error) {
	cur, err := c.accounts.Find(c.ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(c.ctx)
	res := make([]Account, 0)
	for cur.Next(c.ctx) {
		rec := mongoAccount{}
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		res = append(res, Account{AccountNo: rec.AccountNo, Name: rec.Name, Balance: rec.Balance})
	}
	return res, cur.Err()
}

func (c *MongoStore) CountAccounts() (int, error) {
	n, err := c.accounts.CountDocuments(c.ctx, bson.M{})
	return int(n), err
}

func (c *MongoStore) UpsertPending(p *PendingTx) error {
	_, err := c.pending.ReplaceOne(c.ctx, bson.M{"_id": p.Txid},
		mongoPending{Txid: p.Txid, AccountNo: p.AccountNo, Amount: p.Amount, Type: p.Type},
		options.Replace().SetUpsert(true))
	return err
}

func (c *MongoStore) GetPending(txid, typ string) (*PendingTx, error) {
	rec := mongoPending{}
	err := c.pending.FindOne(c.ctx, bson.M{"_id": txid, "type": typ}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &PendingTx{Txid: rec.Txid, AccountNo: rec.AccountNo, Amount: rec.Amount, Type: rec.Type}, nil
}

func (c *MongoStore) DeletePending(txid string) error {
	_, err := c.pending.DeleteOne(c.ctx, bson.M{"_id": txid})
	return err
}

func (c *MongoStore) DeletePendingTyped(txid, typ string) error {
	_, err := c.pending.DeleteOne(c.ctx, bson.M{"_id": txid, "type": typ})
	return err
}

func (c *MongoStore) ListPending() ([]PendingTx, error) {
	cur, err := c.pending.Find(c.ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(c.ctx)
	res := make([]PendingTx, 0)
	for cur.Next(c.ctx) {
		rec := mongoPending{}
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		res = append(res, PendingTx{Txid: rec.Txid, AccountNo: rec.AccountNo, Amount: rec.Amount, Type: rec.Type})
	}
	return res, cur.Err()
}

func (c *MongoStore) PendingWithdrawTotal(accountNo, excludeTxid string) (float64, error) {
	cur, err := c.pending.Find(c.ctx, bson.M{
		"account_no": accountNo,
		"type":       configs.PendingWithdraw,
		"_id":        bson.M{"$ne": excludeTxid},
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(c.ctx)
	var total float64
	for cur.Next(c.ctx) {
		rec := mongoPending{}
		if err := cur.Decode(&rec); err != nil {
			return 0, err
		}
		total += rec.Amount
	}
	return total, cur.Err()
}

func (c *MongoStore) LastReplSeq(origin string) (uint64, error) {
	rec := mongoReplSeq{}
	err := c.replSeq.FindOne(c.ctx, bson.M{"_id": origin}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Seq, nil
}

func (c *MongoStore) SetReplSeq(origin string, seq uint64) error {
	_, err := c.replSeq.ReplaceOne(c.ctx, bson.M{"_id": origin},
		mongoReplSeq{Branch: origin, Seq: seq}, options.Replace().SetUpsert(true))
	return err
}

func (c *MongoStore) Close() error {
	return c.client.Disconnect(c.ctx)
}
