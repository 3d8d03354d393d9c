package bundle

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestResolverSymbolFromTable(t *testing.T) {
	address := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	table := SymbolTable{address: {Symbol: "USDC"}}
	resolver := NewResolver(table, nil, nil)

	if got := resolver.ResolveSymbol(context.Background(), address); got != "USDC" {
		t.Fatalf("symbol = %q, want USDC", got)
	}
}

func TestResolverSymbolFallsBackToTruncatedAddress(t *testing.T) {
	address := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	resolver := NewResolver(nil, nil, nil)

	got := resolver.ResolveSymbol(context.Background(), address)
	if got != "0x1234...5678" {
		t.Fatalf("symbol = %q, want truncated address", got)
	}
}

func TestResolverDecimals(t *testing.T) {
	pinned := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	six := uint8(6)
	resolver := NewResolver(SymbolTable{pinned: {Symbol: "USDC", Decimals: &six}}, nil, nil)
	ctx := context.Background()

	if got := resolver.Decimals(ctx, pinned); got != 6 {
		t.Fatalf("pinned decimals = %d, want 6", got)
	}
	// Native currency is always 18.
	if got := resolver.Decimals(ctx, common.Address{}); got != 18 {
		t.Fatalf("native decimals = %d, want 18", got)
	}
	// Unknown token with no reader degrades to 18.
	if got := resolver.Decimals(ctx, common.HexToAddress("0xcc")); got != 18 {
		t.Fatalf("fallback decimals = %d, want 18", got)
	}
}

func TestMetadataCacheRoundTrip(t *testing.T) {
	cache := NewMemoryMetadataCache()
	ctx := context.Background()
	token := common.HexToAddress("0xdd")

	if _, ok := cache.GetDecimals(ctx, token); ok {
		t.Fatal("empty cache should miss")
	}
	cache.SetDecimals(ctx, token, 8)
	if decimals, ok := cache.GetDecimals(ctx, token); !ok || decimals != 8 {
		t.Fatalf("cached decimals = %d/%v, want 8/true", decimals, ok)
	}
	cache.SetSymbol(ctx, token, "WBTC")
	if symbol, ok := cache.GetSymbol(ctx, token); !ok || symbol != "WBTC" {
		t.Fatalf("cached symbol = %q/%v, want WBTC/true", symbol, ok)
	}
}
