package web3

import (
	"context"
	"math/big"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainSnapshot represents summarized network metadata for UI/reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// Reader is the read-only subset of chain access used for contract view
// calls and balance queries. All ledger, token, and oracle reads go through
// this interface so tests can substitute an in-memory backend.
type Reader interface {
	CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Submitter covers transaction construction and broadcast. The signing agent
// is the only consumer; it layers nonce and gas management on top.
type Submitter interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// BatchCall is one element of an atomic call bundle.
type BatchCall struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// BatchSubmitter is implemented by backends whose endpoint executes a whole
// call sequence as one atomic unit (a wallet_sendCalls style RPC): either
// every call in the bundle takes effect or none does. A backend that merely
// broadcasts several independent transactions in one round trip must not
// advertise this capability — independent transactions commit independently,
// and the submission planner relies on the all-or-nothing guarantee.
type BatchSubmitter interface {
	SupportsBatch() bool
	// SendCallBundle submits the calls as one atomic bundle on behalf of
	// from and returns the single bundle identifier.
	SendCallBundle(ctx context.Context, from common.Address, calls []BatchCall) (common.Hash, error)
	// CallBundleReceipt reports the terminal state of a bundle. It returns
	// an error while the bundle is still pending; pollers retry on error.
	CallBundleReceipt(ctx context.Context, id common.Hash) (*types.Receipt, error)
}

// Backend bundles every chain capability the orchestrator needs from one
// endpoint.
type Backend interface {
	Reader
	Submitter
	BatchSubmitter
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	Close()
}
