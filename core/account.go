package core

import "github.com/nanocurrency/nano-node-sub002/crypto"

// AccountInfo is the per-account head record the ledger keeps up to date as
// each account's chain is extended: the latest block, its representative,
// current balance, and bookkeeping for pruning/rollback.
type AccountInfo struct {
	Account        crypto.Hash
	Head           crypto.Hash // hash of the latest block in this account's chain
	OpenBlock      crypto.Hash // hash of this account's Open block
	Representative crypto.Hash
	Balance        uint64
	BlockCount     uint64
	ConfirmationHeight uint64
}

// PendingEntry is a receivable amount sitting at (account, source-hash)
// until a matching Receive/State-receive block claims it. Indexed by the
// ledger's pending table so a node can answer "what does account X have
// waiting to be received" without scanning every chain.
type PendingEntry struct {
	Account crypto.Hash // the account the send was destined for
	Source  crypto.Hash // hash of the Send/State-send block
	Amount  uint64
}

// ConfirmationHeightInfo records how far an account's chain has been
// cemented: Height is the block_count of the highest confirmed block, Frontier
// is that block's hash. Maintained by the confirm package's cementing walker.
// The ledger stores and returns it but does not consult it when processing
// or rolling back blocks.
type ConfirmationHeightInfo struct {
	Height   uint64
	Frontier crypto.Hash
}
