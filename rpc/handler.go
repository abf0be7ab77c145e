package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// Ledger is the read-only subset of *core.Ledger the RPC layer consults;
// named here so Handler's dependency is explicit and test-doubled easily.
type Ledger interface {
	AccountInfoGet(txn *core.Txn, account crypto.Hash) (*core.AccountInfo, error)
	Balance(txn *core.Txn, account crypto.Hash) (uint64, error)
	Representative(txn *core.Txn, account crypto.Hash) (crypto.Hash, error)
	Weight(txn *core.Txn, representative crypto.Hash) (uint64, error)
	PendingGet(txn *core.Txn, account, source crypto.Hash) (*core.PendingEntry, error)
	ConfirmationHeightGet(txn *core.Txn, account crypto.Hash) (*core.ConfirmationHeightInfo, error)
	BlockGet(txn *core.Txn, hash crypto.Hash) (*core.Block, error)
}

// Submitter accepts a signed, worked block for processing and reports the
// synchronous outcome, implemented by *processor.Processor.
type Submitter interface {
	Force(blk *core.Block) core.ProcessResult
}

// Handler dispatches JSON-RPC 2.0 requests to the node's read model and
// block submission path. Every method is a plain function over already
// committed ledger state; nothing here holds a write transaction open
// across a request.
type Handler struct {
	ledger Ledger
	store  core.KVStore
	submit Submitter
	nodeID string
}

// NewHandler constructs a Handler bound to ledger/store for reads and
// submit for block submission.
func NewHandler(ledger Ledger, store core.KVStore, submit Submitter, nodeID string) *Handler {
	return &Handler{ledger: ledger, store: store, submit: submit, nodeID: nodeID}
}

// Dispatch routes req to the matching method, returning a well-formed
// Response in every case — including unknown methods and malformed
// params, which are reported as JSON-RPC errors rather than panics.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "account_info":
		return h.accountInfo(req)
	case "account_balance":
		return h.accountBalance(req)
	case "account_representative":
		return h.accountRepresentative(req)
	case "representatives_weight":
		return h.representativeWeight(req)
	case "pending":
		return h.pending(req)
	case "block_info":
		return h.blockInfo(req)
	case "process":
		return h.process(req)
	case "node_id":
		return okResponse(req.ID, map[string]string{"node_id": h.nodeID})
	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

type accountParam struct {
	Account string `json:"account"`
}

func (h *Handler) parseAccount(req Request) (crypto.Hash, *Response) {
	var p accountParam
	if err := json.Unmarshal(req.Params, &p); err != nil {
		r := errResponse(req.ID, CodeInvalidParams, err.Error())
		return crypto.Hash{}, &r
	}
	account, err := crypto.HashFromHex(p.Account)
	if err != nil {
		r := errResponse(req.ID, CodeInvalidParams, "invalid account: "+err.Error())
		return crypto.Hash{}, &r
	}
	return account, nil
}

func (h *Handler) accountInfo(req Request) Response {
	account, errResp := h.parseAccount(req)
	if errResp != nil {
		return *errResp
	}
	txn := core.BeginRead(h.store)
	info, err := h.ledger.AccountInfoGet(txn, account)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "account not found")
	}
	ch, _ := h.ledger.ConfirmationHeightGet(txn, account)
	result := map[string]any{
		"frontier":            info.Head.String(),
		"open_block":          info.OpenBlock.String(),
		"representative":      info.Representative.String(),
		"balance":             fmt.Sprintf("%d", info.Balance),
		"block_count":         fmt.Sprintf("%d", info.BlockCount),
		"confirmation_height": uint64(0),
	}
	if ch != nil {
		result["confirmation_height"] = ch.Height
		result["confirmed_frontier"] = ch.Frontier.String()
	}
	return okResponse(req.ID, result)
}

func (h *Handler) accountBalance(req Request) Response {
	account, errResp := h.parseAccount(req)
	if errResp != nil {
		return *errResp
	}
	txn := core.BeginRead(h.store)
	balance, err := h.ledger.Balance(txn, account)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "account not found")
	}
	return okResponse(req.ID, map[string]string{"balance": fmt.Sprintf("%d", balance)})
}

func (h *Handler) accountRepresentative(req Request) Response {
	account, errResp := h.parseAccount(req)
	if errResp != nil {
		return *errResp
	}
	txn := core.BeginRead(h.store)
	rep, err := h.ledger.Representative(txn, account)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "account not found")
	}
	return okResponse(req.ID, map[string]string{"representative": rep.String()})
}

func (h *Handler) representativeWeight(req Request) Response {
	account, errResp := h.parseAccount(req)
	if errResp != nil {
		return *errResp
	}
	txn := core.BeginRead(h.store)
	weight, err := h.ledger.Weight(txn, account)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"weight": fmt.Sprintf("%d", weight)})
}

type pendingParam struct {
	Account string `json:"account"`
	Source  string `json:"source"`
}

func (h *Handler) pending(req Request) Response {
	var p pendingParam
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	account, err := crypto.HashFromHex(p.Account)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "invalid account: "+err.Error())
	}
	source, err := crypto.HashFromHex(p.Source)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "invalid source: "+err.Error())
	}
	txn := core.BeginRead(h.store)
	entry, err := h.ledger.PendingGet(txn, account, source)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "no such pending entry")
	}
	return okResponse(req.ID, map[string]string{"amount": fmt.Sprintf("%d", entry.Amount)})
}

type hashParam struct {
	Hash string `json:"hash"`
}

func (h *Handler) blockInfo(req Request) Response {
	var p hashParam
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	hash, err := crypto.HashFromHex(p.Hash)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "invalid hash: "+err.Error())
	}
	txn := core.BeginRead(h.store)
	blk, err := h.ledger.BlockGet(txn, hash)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "block not found")
	}
	return okResponse(req.ID, map[string]any{
		"type":      blk.Type.String(),
		"account":   blk.Account.String(),
		"signature": blk.Signature.String(),
	})
}

type processParam struct {
	Block json.RawMessage `json:"block"`
}

func (h *Handler) process(req Request) Response {
	var p processParam
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	var blk core.Block
	if err := json.Unmarshal(p.Block, &blk); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "invalid block: "+err.Error())
	}
	result := h.submit.Force(&blk)
	if result != core.Progress {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("block rejected: %s", result))
	}
	return okResponse(req.ID, map[string]string{"hash": blk.Hash().String()})
}
