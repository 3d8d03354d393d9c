// Package bundle defines the investment orchestrator's data model: token
// references, bundle snapshots, and the human/native amount converter that
// is the only allowed producer of paired amounts. It also hosts the token
// metadata resolver, which degrades gracefully when the external ledger
// cannot answer a metadata read.
package bundle
