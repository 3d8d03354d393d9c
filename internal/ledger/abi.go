package ledger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const bundleABIJSON = `[
  {"inputs":[],"name":"name","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"symbol","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"totalSupply","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"nav","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"creator","outputs":[{"type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"creationUnit","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getComponents","outputs":[{"components":[{"name":"token","type":"address"},{"name":"weight","type":"uint256"}],"type":"tuple[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getComponentBalances","outputs":[{"type":"uint256[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"shares","type":"uint256"}],"name":"getRequiredAmounts","outputs":[{"type":"uint256[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"shares","type":"uint256"}],"name":"getRedeemAmounts","outputs":[{"type":"uint256[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"shares","type":"uint256"}],"name":"mintExactBasket","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"inputToken","type":"address"},{"name":"inputAmount","type":"uint256"},{"name":"minShares","type":"uint256"}],"name":"mintFromSingle","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"shares","type":"uint256"}],"name":"redeemForBasket","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"shares","type":"uint256"},{"name":"outputToken","type":"address"},{"name":"minOut","type":"uint256"}],"name":"redeemForSingle","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const erc20ABIJSON = `[
  {"inputs":[],"name":"name","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"symbol","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[{"type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"totalSupply","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const factoryABIJSON = `[
  {"inputs":[],"name":"getAllBundles","outputs":[{"type":"address[]"}],"stateMutability":"view","type":"function"}
]`

var (
	bundleABIOnce  = sync.OnceValues(func() (abi.ABI, error) { return parseABI("bundle", bundleABIJSON) })
	erc20ABIOnce   = sync.OnceValues(func() (abi.ABI, error) { return parseABI("erc20", erc20ABIJSON) })
	factoryABIOnce = sync.OnceValues(func() (abi.ABI, error) { return parseABI("factory", factoryABIJSON) })
)

func parseABI(name, raw string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("解析 %s ABI 失败: %w", name, err)
	}
	return parsed, nil
}

func bundleABI() (abi.ABI, error)  { return bundleABIOnce() }
func erc20ABI() (abi.ABI, error)   { return erc20ABIOnce() }
func factoryABI() (abi.ABI, error) { return factoryABIOnce() }
