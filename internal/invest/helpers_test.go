package invest

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"BundleHub-Chain/internal/wallet"
	"BundleHub-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// 测试专用私钥（公开的开发链示例密钥）。
const testKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

var (
	testOwner   = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	testSpender = common.HexToAddress("0x00000000000000000000000000000000000000ef")
)

func sel(signature string) string {
	return hex.EncodeToString(crypto.Keccak256([]byte(signature))[:4])
}

func encodeWord(value *big.Int) []byte {
	return common.LeftPadBytes(value.Bytes(), 32)
}

func encodeBigSlice(values []*big.Int) []byte {
	out := make([]byte, 0, 64+32*len(values))
	out = append(out, encodeWord(big.NewInt(32))...)
	out = append(out, encodeWord(big.NewInt(int64(len(values))))...)
	for _, value := range values {
		out = append(out, encodeWord(value)...)
	}
	return out
}

func encodeString(value string) []byte {
	padded := len(value)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}
	out := make([]byte, 0, 64+padded)
	out = append(out, encodeWord(big.NewInt(32))...)
	out = append(out, encodeWord(big.NewInt(int64(len(value))))...)
	out = append(out, []byte(value)...)
	out = append(out, make([]byte, padded-len(value))...)
	return out
}

// encodeComponents 编码 (address,uint256)[] 形式的成分列表。
func encodeComponents(tokens []common.Address, weights []int64) []byte {
	out := make([]byte, 0, 64+64*len(tokens))
	out = append(out, encodeWord(big.NewInt(32))...)
	out = append(out, encodeWord(big.NewInt(int64(len(tokens))))...)
	for i, token := range tokens {
		out = append(out, common.LeftPadBytes(token.Bytes(), 32)...)
		out = append(out, encodeWord(big.NewInt(weights[i]))...)
	}
	return out
}

// routedReader 按函数选择器路由只读调用的返回值；同一选择器可以按目标
// 合约地址进一步区分。
type routedReader struct {
	responses map[string][]byte
	errors    map[string]error
}

func newRoutedReader() *routedReader {
	return &routedReader{
		responses: make(map[string][]byte),
		errors:    make(map[string]error),
	}
}

func (r *routedReader) on(signature string, response []byte) {
	r.responses[sel(signature)] = response
}

func (r *routedReader) onAt(target common.Address, signature string, response []byte) {
	r.responses[target.Hex()+":"+sel(signature)] = response
}

func (r *routedReader) failOn(signature string, err error) {
	r.errors[sel(signature)] = err
}

func (r *routedReader) CallContract(_ context.Context, msg gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("call without selector")
	}
	key := hex.EncodeToString(msg.Data[:4])
	if err, ok := r.errors[key]; ok {
		return nil, err
	}
	if msg.To != nil {
		if response, ok := r.responses[msg.To.Hex()+":"+key]; ok {
			return response, nil
		}
	}
	if response, ok := r.responses[key]; ok {
		return response, nil
	}
	return nil, fmt.Errorf("unexpected selector %s", key)
}

func (r *routedReader) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}

var _ web3.Reader = (*routedReader)(nil)

// fakeBackend 实现 web3.Backend，在内存中记录提交的交易与原子调用包。
type fakeBackend struct {
	*routedReader

	mu           sync.Mutex
	nonce        uint64
	sent         []*coretypes.Transaction
	bundles      [][]web3.BatchCall
	batch        bool
	bundleRevert bool
	sendErrAt    int
	sendErrOn    map[string]error
	revertOnceOn string
	reverted     map[common.Hash]bool
}

func newFakeBackend(reader *routedReader) *fakeBackend {
	if reader == nil {
		reader = newRoutedReader()
	}
	return &fakeBackend{
		routedReader: reader,
		sendErrAt:    -1,
		sendErrOn:    make(map[string]error),
		reverted:     make(map[common.Hash]bool),
	}
}

// failSendOn 让指定函数的交易广播失败。
func (b *fakeBackend) failSendOn(signature string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErrOn[sel(signature)] = err
}

// revertFirst 让下一笔指定函数的交易在链上回滚。
func (b *fakeBackend) revertFirst(signature string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revertOnceOn = sel(signature)
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce + uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, gethcore.CallMsg) (uint64, error) {
	return 21000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *coretypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErrAt >= 0 && len(b.sent) == b.sendErrAt {
		return fmt.Errorf("节点拒绝了交易")
	}
	if data := tx.Data(); len(data) >= 4 {
		key := hex.EncodeToString(data[:4])
		if err, ok := b.sendErrOn[key]; ok {
			return err
		}
		if b.revertOnceOn == key {
			b.reverted[tx.Hash()] = true
			b.revertOnceOn = ""
		}
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	status := coretypes.ReceiptStatusSuccessful
	b.mu.Lock()
	if b.reverted[txHash] {
		status = coretypes.ReceiptStatusFailed
	}
	b.mu.Unlock()
	return &coretypes.Receipt{Status: status, TxHash: txHash}, nil
}

func (b *fakeBackend) SupportsBatch() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batch
}

func (b *fakeBackend) SendCallBundle(_ context.Context, from common.Address, calls []web3.BatchCall) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bundles = append(b.bundles, calls)
	seed := from.Bytes()
	for _, call := range calls {
		seed = append(seed, call.To.Bytes()...)
		seed = append(seed, call.Data...)
	}
	seed = append(seed, byte(len(b.bundles)))
	return crypto.Keccak256Hash(seed), nil
}

func (b *fakeBackend) CallBundleReceipt(_ context.Context, id common.Hash) (*coretypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := coretypes.ReceiptStatusSuccessful
	if b.bundleRevert {
		status = coretypes.ReceiptStatusFailed
	}
	return &coretypes.Receipt{Status: status, TxHash: id}, nil
}

func (b *fakeBackend) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{ChainID: "1337"}, nil
}

func (b *fakeBackend) Close() {}

var _ web3.Backend = (*fakeBackend)(nil)

func newTestSigner(t interface{ Fatalf(string, ...any) }, backend web3.Backend, atomic bool) *wallet.Signer {
	signer, err := wallet.NewSigner(wallet.Config{
		PrivateKeyHex:       testKeyHex,
		AtomicBatch:         atomic,
		ReceiptPollInterval: 10 * time.Millisecond,
	}, backend)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}
