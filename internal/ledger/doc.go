// Package ledger contains hand-rolled contract bindings for the on-chain
// bundle ledger: the bundle contract's read surface and mint/redeem payload
// builders, the factory listing deployed bundles, and the ERC-20 token
// surface used for balances, decimals, allowances, and approvals. The
// package never signs or submits anything; it only reads state and produces
// call payloads for the submission planner.
package ledger
