package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"BundleHub-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to construct an EVM compatible client. WalletRPCURL
// points at an endpoint implementing the wallet_sendCalls family; it is the
// only source of the atomic batch capability.
type Config struct {
	Name         string
	RPCURL       string
	WalletRPCURL string
	Notes        string
}

// Client implements the web3.Backend interface for EVM compatible chains.
type Client struct {
	name         string
	notes        string
	rpcClient    *gethrpc.Client
	walletClient *gethrpc.Client
	eth          *ethclient.Client

	mu           sync.Mutex
	chainID      *big.Int
	atomicProbed bool
	atomic       bool
}

// NewClient dials the configured RPC endpoints and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	eth := ethclient.NewClient(rpcClient)

	var walletClient *gethrpc.Client
	if walletURL := strings.TrimSpace(cfg.WalletRPCURL); walletURL != "" {
		if walletURL == rpcURL {
			walletClient = rpcClient
		} else {
			walletClient, err = gethrpc.DialContext(ctx, walletURL)
			if err != nil {
				rpcClient.Close()
				return nil, fmt.Errorf("连接钱包批量端点失败: %w", err)
			}
		}
	}

	return &Client{
		name:         cfg.Name,
		notes:        cfg.Notes,
		rpcClient:    rpcClient,
		walletClient: walletClient,
		eth:          eth,
	}, nil
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.walletClient != nil && c.walletClient != c.rpcClient {
		c.walletClient.Close()
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	c.rpcClient = nil
	c.walletClient = nil
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	if c == nil || c.eth == nil {
		return web3.ChainSnapshot{}, errors.New("未初始化的以太坊客户端")
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	blockNumber, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return web3.ChainSnapshot{
		ChainID:     toHexBig(chainID),
		BlockNumber: fmt.Sprintf("0x%x", blockNumber),
		Notes:       c.notes,
	}, nil
}

// ChainID returns the chain identifier, cached after the first read.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询链 ID 失败: %w", err)
	}
	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// CallContract executes a read-only contract call.
func (c *Client) CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	return c.eth.CallContract(ctx, msg, blockNumber)
}

// BalanceAt returns the native currency balance of an account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	return c.eth.BalanceAt(ctx, account, blockNumber)
}

// PendingNonceAt returns the next nonce for the account, pending included.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

// SuggestGasPrice queries the node for a gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

// EstimateGas simulates the message and returns the gas required.
func (c *Client) EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error) {
	return c.eth.EstimateGas(ctx, msg)
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *coretypes.Transaction) error {
	return c.eth.SendTransaction(ctx, tx)
}

// TransactionReceipt fetches the receipt of a mined transaction.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, txHash)
}

// SupportsBatch reports whether the wallet endpoint accepts atomic call
// bundles. Probed once via wallet_getCapabilities and cached; a wallet that
// does not answer the capability query never gets the atomic path.
func (c *Client) SupportsBatch() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.walletClient == nil {
		return false
	}
	if c.atomicProbed {
		return c.atomic
	}
	c.atomicProbed = true
	var capabilities json.RawMessage
	err := c.walletClient.CallContext(context.Background(), &capabilities,
		"wallet_getCapabilities", common.Address{})
	c.atomic = err == nil || !isMethodMissing(err)
	return c.atomic
}

type bundleCallParam struct {
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value,omitempty"`
	Data  hexutil.Bytes  `json:"data,omitempty"`
}

type sendCallsParam struct {
	Version        string            `json:"version"`
	ChainID        *hexutil.Big      `json:"chainId"`
	From           common.Address    `json:"from"`
	AtomicRequired bool              `json:"atomicRequired"`
	Calls          []bundleCallParam `json:"calls"`
}

type sendCallsResult struct {
	ID common.Hash `json:"id"`
}

type callsStatusResult struct {
	Status   int `json:"status"`
	Receipts []struct {
		TransactionHash common.Hash    `json:"transactionHash"`
		Status          hexutil.Uint64 `json:"status"`
	} `json:"receipts"`
}

// SendCallBundle submits the calls to the wallet endpoint as one atomic
// bundle. The wallet executes and lands the whole sequence as a single unit;
// no independently committed transaction ever leaves this path.
func (c *Client) SendCallBundle(ctx context.Context, from common.Address, calls []web3.BatchCall) (common.Hash, error) {
	if len(calls) == 0 {
		return common.Hash{}, errors.New("没有可提交的调用")
	}
	if c == nil || c.walletClient == nil {
		return common.Hash{}, errors.New("当前客户端未配置钱包批量端点")
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	param := sendCallsParam{
		Version:        "2.0.0",
		ChainID:        (*hexutil.Big)(chainID),
		From:           from,
		AtomicRequired: true,
		Calls:          make([]bundleCallParam, 0, len(calls)),
	}
	for _, call := range calls {
		entry := bundleCallParam{To: call.To, Data: call.Data}
		if call.Value != nil && call.Value.Sign() > 0 {
			entry.Value = (*hexutil.Big)(call.Value)
		}
		param.Calls = append(param.Calls, entry)
	}

	var result sendCallsResult
	if err := c.walletClient.CallContext(ctx, &result, "wallet_sendCalls", param); err != nil {
		return common.Hash{}, fmt.Errorf("提交原子调用包失败: %w", err)
	}
	return result.ID, nil
}

// CallBundleReceipt queries the terminal state of a call bundle. A pending
// bundle is reported as an error so the caller keeps polling.
func (c *Client) CallBundleReceipt(ctx context.Context, id common.Hash) (*coretypes.Receipt, error) {
	if c == nil || c.walletClient == nil {
		return nil, errors.New("当前客户端未配置钱包批量端点")
	}
	var result callsStatusResult
	if err := c.walletClient.CallContext(ctx, &result, "wallet_getCallsStatus", id); err != nil {
		return nil, fmt.Errorf("查询调用包状态失败: %w", err)
	}
	if result.Status < 200 {
		return nil, fmt.Errorf("调用包 %s 尚未确认", id.Hex())
	}

	receipt := &coretypes.Receipt{Status: coretypes.ReceiptStatusFailed, TxHash: id}
	if result.Status == 200 {
		receipt.Status = coretypes.ReceiptStatusSuccessful
	}
	if n := len(result.Receipts); n > 0 {
		receipt.TxHash = result.Receipts[n-1].TransactionHash
	}
	return receipt, nil
}

// isMethodMissing classifies node errors that mean the RPC method itself is
// absent, as opposed to a transient failure.
func isMethodMissing(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "method not found") ||
		strings.Contains(message, "does not exist") ||
		strings.Contains(message, "not supported")
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
