package network

import (
	"FB/configs"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Request is one framed call: an action name plus a raw parameter object.
// Params stays raw until the handler decodes its typed shape, so unknown
// actions fail cleanly and extra fields are tolerated.
type Request struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Response is the only channel back to the caller. On ok the result is
// optional; on error the message is required.
type Response struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func Ok(result interface{}) *Response {
	res := &Response{Status: configs.StatusOK}
	if result != nil {
		byt, err := json.Marshal(result)
		configs.CheckError(err)
		res.Result = byt
	}
	return res
}

func Errorf(format string, a ...interface{}) *Response {
	if len(a) == 0 {
		return &Response{Status: configs.StatusError, Error: format}
	}
	return &Response{Status: configs.StatusError, Error: fmt.Sprintf(format, a...)}
}

func (c *Response) IsOK() bool {
	return c != nil && c.Status == configs.StatusOK
}

// String renders the response the way it is embedded into the coordinator
// composite errors ("destination prepare failed: <response>").
func (c *Response) String() string {
	return configs.JToString(c)
}

// DecodeResult unpacks the result object into a typed value.
func (c *Response) DecodeResult(v interface{}) error {
	return json.Unmarshal(c.Result, v)
}

/* Typed parameter shapes for the action catalogue. */

type CreateAccountParams struct {
	AccountNo string  `json:"account_no"`
	Name      string  `json:"name"`
	Balance   float64 `json:"balance"`
}

type AccountParams struct {
	AccountNo string `json:"account_no"`
}

type AmountParams struct {
	AccountNo string  `json:"account_no"`
	Amount    float64 `json:"amount"`
}

type LocalTransferParams struct {
	SrcAccountNo  string  `json:"src_account_no"`
	DestAccountNo string  `json:"dest_account_no"`
	Amount        float64 `json:"amount"`
}

type TransferParams struct {
	SrcAccountNo  string  `json:"src_account_no"`
	DestHost      string  `json:"dest_host"`
	DestPort      int     `json:"dest_port"`
	DestAccountNo string  `json:"dest_account_no"`
	Amount        float64 `json:"amount"`
}

// TxnParams covers the 2PC verbs: prepare carries all three fields,
// commit and abort only need the txid.
type TxnParams struct {
	Txid      string  `json:"txid"`
	AccountNo string  `json:"account_no"`
	Amount    float64 `json:"amount"`
}

// ReplicatePayload is the unit shipped to replicas. Origin and Seq form the
// per-branch watermark replicas dedupe on; both zero means a legacy message
// that is applied unconditionally.
type ReplicatePayload struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
	Origin string          `json:"origin,omitempty"`
	Seq    uint64          `json:"seq,omitempty"`
}

// ReplicateParams accepts the payload either inline or nested under "data".
type ReplicateParams struct {
	ReplicatePayload
	Data *ReplicatePayload `json:"data,omitempty"`
}

func (c *ReplicateParams) Payload() *ReplicatePayload {
	if c.Data != nil {
		return c.Data
	}
	return &c.ReplicatePayload
}

// ValidAmount rejects the values float64 can smuggle past JSON decoding.
func ValidAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount >= 0
}
