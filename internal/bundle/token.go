package bundle

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"BundleHub-Chain/internal/ledger"
	"BundleHub-Chain/internal/web3"
	"BundleHub-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// MetadataCache stores per-session token metadata so repeated orchestration
// calls do not re-read immutable values from the ledger. Implementations
// must tolerate concurrent use.
type MetadataCache interface {
	GetDecimals(ctx context.Context, token common.Address) (uint8, bool)
	SetDecimals(ctx context.Context, token common.Address, decimals uint8)
	GetSymbol(ctx context.Context, token common.Address) (string, bool)
	SetSymbol(ctx context.Context, token common.Address, symbol string)
}

// memoryMetadataCache is the in-process default cache.
type memoryMetadataCache struct {
	mu       sync.RWMutex
	decimals map[common.Address]uint8
	symbols  map[common.Address]string
}

// NewMemoryMetadataCache builds the in-process metadata cache.
func NewMemoryMetadataCache() MetadataCache {
	return &memoryMetadataCache{
		decimals: make(map[common.Address]uint8),
		symbols:  make(map[common.Address]string),
	}
}

func (c *memoryMetadataCache) GetDecimals(_ context.Context, token common.Address) (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	decimals, ok := c.decimals[token]
	return decimals, ok
}

func (c *memoryMetadataCache) SetDecimals(_ context.Context, token common.Address, decimals uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decimals[token] = decimals
}

func (c *memoryMetadataCache) GetSymbol(_ context.Context, token common.Address) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	symbol, ok := c.symbols[token]
	return symbol, ok
}

func (c *memoryMetadataCache) SetSymbol(_ context.Context, token common.Address, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols[token] = symbol
}

// Resolver maps token addresses to display symbols and answers live
// decimals/balance/allowance reads. Metadata reads are best-effort: a
// failed read degrades to the documented fallback and never aborts the
// calling flow.
type Resolver struct {
	table  SymbolTable
	reader web3.Reader
	cache  MetadataCache
}

// NewResolver builds a resolver backed by the injected symbol table, the
// chain reader, and an optional metadata cache.
func NewResolver(table SymbolTable, reader web3.Reader, cache MetadataCache) *Resolver {
	if table == nil {
		table = SymbolTable{}
	}
	if cache == nil {
		cache = NewMemoryMetadataCache()
	}
	return &Resolver{table: table, reader: reader, cache: cache}
}

// ResolveSymbol returns the display symbol for the token, falling back to a
// truncated address when nothing better is known.
func (r *Resolver) ResolveSymbol(ctx context.Context, token common.Address) string {
	if def, ok := r.table[token]; ok && def.Symbol != "" {
		return def.Symbol
	}
	if symbol, ok := r.cache.GetSymbol(ctx, token); ok {
		return symbol
	}
	if !ledger.IsNative(token) && r.reader != nil {
		if symbol, err := ledger.NewToken(token, r.reader).Symbol(ctx); err == nil && symbol != "" {
			r.cache.SetSymbol(ctx, token, symbol)
			return symbol
		}
	}
	return truncatedAddress(token)
}

// Decimals returns the token's decimal precision, degrading to 18 when the
// read fails. The degraded value is logged but never cached, so a later
// successful read can correct it.
func (r *Resolver) Decimals(ctx context.Context, token common.Address) uint8 {
	if ledger.IsNative(token) {
		return NativeDecimals
	}
	if def, ok := r.table[token]; ok && def.Decimals != nil {
		return *def.Decimals
	}
	if decimals, ok := r.cache.GetDecimals(ctx, token); ok {
		return decimals
	}
	if r.reader != nil {
		decimals, err := ledger.NewToken(token, r.reader).Decimals(ctx)
		if err == nil {
			r.cache.SetDecimals(ctx, token, decimals)
			return decimals
		}
		logger.L().Warn("读取代币精度失败，回退到 18 位",
			slog.String("token", token.Hex()),
			slog.Any("error", err),
		)
	}
	return NativeDecimals
}

// Ref resolves the full token reference in one call.
func (r *Resolver) Ref(ctx context.Context, token common.Address) TokenRef {
	return TokenRef{
		Address:  token,
		Symbol:   r.ResolveSymbol(ctx, token),
		Decimals: r.Decimals(ctx, token),
	}
}

// Balance reads the owner's balance of the token in native units.
func (r *Resolver) Balance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if ledger.IsNative(token) {
		return r.reader.BalanceAt(ctx, owner, nil)
	}
	return ledger.NewToken(token, r.reader).BalanceOf(ctx, owner)
}

// Allowance reads the spender's allowance over the owner's tokens. The
// native currency has no allowance concept and always reads as unlimited.
func (r *Resolver) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if ledger.IsNative(token) {
		return new(big.Int).SetBit(new(big.Int), 256, 1), nil
	}
	return ledger.NewToken(token, r.reader).Allowance(ctx, owner, spender)
}

func truncatedAddress(token common.Address) string {
	hex := token.Hex()
	if len(hex) <= 10 {
		return hex
	}
	return hex[:6] + "..." + hex[len(hex)-4:]
}
