// Package wallet implements the signing agent: it turns raw call payloads
// into signed transactions, manages nonces and gas, and advertises whether
// the connected backend can absorb a whole call sequence as one atomic
// batch submission.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"BundleHub-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Call is one raw contract invocation: target, native value, and payload.
type Call struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
}

// Config controls signer construction.
type Config struct {
	PrivateKeyHex string
	// AtomicBatch opts the wallet in to atomic batch submission when the
	// backend supports it. Probed once and cached for the session.
	AtomicBatch bool
	// ReceiptPollInterval bounds how often sequential submission polls for
	// receipts.
	ReceiptPollInterval time.Duration
}

// Signer signs and submits calls on behalf of one account.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend web3.Backend
	poll    time.Duration

	atomicOptIn bool
	probeOnce   sync.Once
	atomic      bool

	mu      sync.Mutex
	chainID *big.Int

	// submitMu serializes nonce allocation and broadcast so concurrent
	// callers from the same account never race on nonces.
	submitMu sync.Mutex
}

// NewSigner builds a signer from a hex-encoded private key.
func NewSigner(cfg Config, backend web3.Backend) (*Signer, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x")
	if keyHex == "" {
		return nil, errors.New("未配置签名私钥")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("解析签名私钥失败: %w", err)
	}
	poll := cfg.ReceiptPollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Signer{
		key:         key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		backend:     backend,
		poll:        poll,
		atomicOptIn: cfg.AtomicBatch,
	}, nil
}

// Address returns the signing account address.
func (s *Signer) Address() common.Address {
	if s == nil {
		return common.Address{}
	}
	return s.address
}

// SupportsAtomicBatch reports whether the signer may submit a whole plan as
// one atomic unit. The capability is probed once per session and cached;
// callers never re-probe mid-flight.
func (s *Signer) SupportsAtomicBatch() bool {
	if s == nil {
		return false
	}
	s.probeOnce.Do(func() {
		s.atomic = s.atomicOptIn && s.backend != nil && s.backend.SupportsBatch()
	})
	return s.atomic
}

func (s *Signer) chainIdentifier(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	cached := s.chainID
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	s.mu.Lock()
	s.chainID = id
	s.mu.Unlock()
	return id, nil
}

// sign builds and signs a legacy transaction for the call at the given nonce.
func (s *Signer) sign(ctx context.Context, call Call, nonce uint64) (*coretypes.Transaction, error) {
	chainID, err := s.chainIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取建议 gas 价格失败: %w", err)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	gasLimit, err := s.backend.EstimateGas(ctx, gethcore.CallMsg{
		From:  s.address,
		To:    &call.Target,
		Value: value,
		Data:  call.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("估算 gas 失败: %w", err)
	}
	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		To:       &call.Target,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     call.Payload,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("签名交易失败: %w", err)
	}
	return signed, nil
}

// Submit signs one call, broadcasts it, and returns the transaction hash
// without waiting for a receipt.
func (s *Signer) Submit(ctx context.Context, call Call) (common.Hash, error) {
	if s == nil || s.backend == nil {
		return common.Hash{}, errors.New("签名器未初始化")
	}
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("获取账户 nonce 失败: %w", err)
	}
	signed, err := s.sign(ctx, call, nonce)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("发送交易失败: %w", err)
	}
	return signed.Hash(), nil
}

// SubmitAtomic hands the whole call sequence to the backend's atomic bundle
// endpoint and returns the single bundle identifier. No independent
// transactions are signed here: the wallet endpoint lands the sequence as
// one unit, so either every call commits or none does.
func (s *Signer) SubmitAtomic(ctx context.Context, calls []Call) (common.Hash, error) {
	if s == nil || s.backend == nil {
		return common.Hash{}, errors.New("签名器未初始化")
	}
	if len(calls) == 0 {
		return common.Hash{}, errors.New("批量提交的调用列表为空")
	}
	batch := make([]web3.BatchCall, 0, len(calls))
	for _, call := range calls {
		value := call.Value
		if value == nil {
			value = new(big.Int)
		}
		batch = append(batch, web3.BatchCall{To: call.Target, Value: value, Data: call.Payload})
	}
	id, err := s.backend.SendCallBundle(ctx, s.address, batch)
	if err != nil {
		return common.Hash{}, fmt.Errorf("提交原子调用包失败: %w", err)
	}
	return id, nil
}

// WaitBundle polls until the atomic call bundle reaches a terminal state or
// the context is done.
func (s *Signer) WaitBundle(ctx context.Context, id common.Hash) (*coretypes.Receipt, error) {
	if s == nil || s.backend == nil {
		return nil, errors.New("签名器未初始化")
	}
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.CallBundleReceipt(ctx, id)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitMined polls until the transaction is mined or the context is done.
func (s *Signer) WaitMined(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	if s == nil || s.backend == nil {
		return nil, errors.New("签名器未初始化")
	}
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
