package ledger

import (
	"context"
	"fmt"

	"BundleHub-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// Factory wraps the bundle factory contract that tracks deployed bundles.
type Factory struct {
	address common.Address
	reader  web3.Reader
}

// NewFactory binds the factory contract at the given address.
func NewFactory(address common.Address, reader web3.Reader) *Factory {
	return &Factory{address: address, reader: reader}
}

// AllBundles lists every bundle the factory has deployed.
func (f *Factory) AllBundles(ctx context.Context) ([]common.Address, error) {
	contractABI, err := factoryABI()
	if err != nil {
		return nil, err
	}
	values, err := view(ctx, f.reader, contractABI, f.address, "getAllBundles")
	if err != nil {
		return nil, err
	}
	addrs, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("getAllBundles 返回值类型不符")
	}
	return addrs, nil
}
