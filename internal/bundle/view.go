package bundle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"BundleHub-Chain/internal/ledger"
	"BundleHub-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// View fetches read-only bundle projections from the ledger.
type View struct {
	reader web3.Reader
	tokens *Resolver
}

// NewView builds a view over the given chain reader and token resolver.
func NewView(reader web3.Reader, tokens *Resolver) *View {
	return &View{reader: reader, tokens: tokens}
}

// Tokens exposes the underlying resolver.
func (v *View) Tokens() *Resolver { return v.tokens }

// Snapshot fetches a fresh projection of the bundle. When owner is the zero
// address the user share balance is reported as zero without a read.
func (v *View) Snapshot(ctx context.Context, bundleAddress, owner common.Address) (*BundleSnapshot, error) {
	contract := ledger.NewBundle(bundleAddress, v.reader)

	name, err := contract.Name(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 bundle 名称失败: %w", err)
	}
	symbol, err := contract.Symbol(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 bundle 符号失败: %w", err)
	}
	totalSupply, err := contract.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 bundle 总供应量失败: %w", err)
	}
	nav, err := contract.NAV(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 bundle 净值失败: %w", err)
	}
	creationUnit, err := contract.CreationUnit(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取最小申购单位失败: %w", err)
	}
	rawComponents, err := contract.Components(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 bundle 成分失败: %w", err)
	}

	// Metadata reads for distinct components are independent, so they are
	// issued concurrently and joined before the snapshot is assembled.
	components := make([]ComponentSpec, len(rawComponents))
	var wg sync.WaitGroup
	for i, raw := range rawComponents {
		wg.Add(1)
		go func(i int, raw ledger.Component) {
			defer wg.Done()
			weight := uint32(0)
			if raw.Weight != nil {
				weight = uint32(raw.Weight.Uint64())
			}
			components[i] = ComponentSpec{
				Token:     v.tokens.Ref(ctx, raw.Token),
				WeightBps: weight,
			}
		}(i, raw)
	}
	wg.Wait()

	userShares := new(big.Int)
	if owner != (common.Address{}) {
		balance, err := contract.BalanceOf(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("读取用户份额失败: %w", err)
		}
		userShares = balance
	}

	snapshot := &BundleSnapshot{
		Address:      bundleAddress,
		Name:         name,
		Symbol:       symbol,
		TotalSupply:  totalSupply,
		NAV:          nav,
		CreationUnit: creationUnit,
		Components:   components,
		UserShares:   userShares,
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("bundle 快照校验失败: %w", err)
	}
	return snapshot, nil
}

// Info extends a snapshot with the held balance of each component for
// presentation use.
type Info struct {
	Snapshot          *BundleSnapshot
	ComponentBalances []*big.Int
}

// Info fetches the presentation projection of one bundle.
func (v *View) Info(ctx context.Context, bundleAddress, owner common.Address) (*Info, error) {
	snapshot, err := v.Snapshot(ctx, bundleAddress, owner)
	if err != nil {
		return nil, err
	}
	balances, err := ledger.NewBundle(bundleAddress, v.reader).ComponentBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取成分余额失败: %w", err)
	}
	return &Info{Snapshot: snapshot, ComponentBalances: balances}, nil
}

// ListBundles resolves every bundle deployed by the factory.
func (v *View) ListBundles(ctx context.Context, factoryAddress, owner common.Address) ([]*Info, error) {
	addresses, err := ledger.NewFactory(factoryAddress, v.reader).AllBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 bundle 列表失败: %w", err)
	}
	infos := make([]*Info, 0, len(addresses))
	for _, address := range addresses {
		info, err := v.Info(ctx, address, owner)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
