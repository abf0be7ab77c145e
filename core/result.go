package core

// ProcessResult is the typed outcome of Ledger.Process: a closed set of
// named outcomes rather than exception-style parsing. Callers switch on
// the value rather than inspecting an error chain.
type ProcessResult int

const (
	// Progress means the block was validated and appended to the ledger.
	Progress ProcessResult = iota
	// BadSignature means the block's signature failed verification.
	BadSignature
	// Old means this exact block (by hash) is already present.
	Old
	// NegativeSpend means a Send block's resulting balance would be
	// negative, or a State block's implied amount is negative.
	NegativeSpend
	// Fork means another block already occupies this root (the election
	// root: Previous if set, else Account).
	Fork
	// Unreceivable means a Receive/State-receive names a source block that
	// exists but was never sent to this account, or has already been
	// received.
	Unreceivable
	// GapPrevious means the block's Previous hash is not yet in the ledger.
	GapPrevious
	// GapSource means the block's Source/Link (receive) hash is not yet in
	// the ledger.
	GapSource
	// OpenedBurnAccount means an Open/State-open names the reserved burn
	// account as its account, which can never be validly opened.
	OpenedBurnAccount
	// BalanceMismatch means a State block's declared Balance does not match
	// Previous's balance plus/minus the implied send or receive amount.
	BalanceMismatch
	// RepresentativeMismatch means a State block's Representative differs
	// from the account's chain-wide representative in a way the block type
	// does not permit to change.
	RepresentativeMismatch
	// BlockPosition means the block could not be placed at all: its type is
	// not one the ledger knows, or a State block's account record could not
	// be read from the store.
	BlockPosition
	// InsufficientWork means the block's proof-of-work nonce doesn't meet
	// the configured difficulty threshold for its root. Checked by the
	// processor before a block ever reaches the ledger.
	InsufficientWork
)

func (r ProcessResult) String() string {
	switch r {
	case Progress:
		return "progress"
	case BadSignature:
		return "bad_signature"
	case Old:
		return "old"
	case NegativeSpend:
		return "negative_spend"
	case Fork:
		return "fork"
	case Unreceivable:
		return "unreceivable"
	case GapPrevious:
		return "gap_previous"
	case GapSource:
		return "gap_source"
	case OpenedBurnAccount:
		return "opened_burn_account"
	case BalanceMismatch:
		return "balance_mismatch"
	case RepresentativeMismatch:
		return "representative_mismatch"
	case BlockPosition:
		return "block_position"
	case InsufficientWork:
		return "insufficient_work"
	default:
		return "unknown"
	}
}
