// Package web3 houses blockchain connectivity utilities for the BundleHub
// orchestrator: RPC clients, the backend abstraction consumed by the ledger
// and oracle bindings, and multi-chain configuration helpers. It supports the
// contract reads, transaction submission, and batched raw-transaction
// broadcast the investment flow depends on.
package web3
