package bundle

import (
	"errors"
	"math/big"

	"BundleHub-Chain/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// WeightScaleBps is the basis-point scale component weights are expressed in.
const WeightScaleBps = 10000

// TokenRef identifies one token together with its resolved display metadata.
// Immutable once resolved; decimals are fetched once and may be cached for
// the session.
type TokenRef struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// IsNative reports whether the reference stands for the native currency.
func (t TokenRef) IsNative() bool {
	return ledger.IsNative(t.Address)
}

// ComponentSpec is the bundle's target allocation for one component token.
type ComponentSpec struct {
	Token     TokenRef
	WeightBps uint32
}

// BundleSnapshot is a read-only projection of one bundle, fetched fresh per
// orchestration call. It is never mutated locally: callers re-fetch rather
// than patch, so decisions never run on a stale NAV.
type BundleSnapshot struct {
	Address      common.Address
	Name         string
	Symbol       string
	TotalSupply  *big.Int
	NAV          *big.Int
	CreationUnit *big.Int
	Components   []ComponentSpec
	UserShares   *big.Int
}

// Validate checks the structural invariants of the snapshot.
func (s *BundleSnapshot) Validate() error {
	if s == nil {
		return errors.New("bundle snapshot is nil")
	}
	if len(s.Components) == 0 {
		return errors.New("bundle has no components")
	}
	var total uint64
	for _, component := range s.Components {
		total += uint64(component.WeightBps)
	}
	if total != WeightScaleBps {
		return errors.New("component weights do not sum to 10000 bps")
	}
	if s.NAV == nil || s.NAV.Sign() <= 0 {
		return errors.New("bundle nav is not positive")
	}
	return nil
}
