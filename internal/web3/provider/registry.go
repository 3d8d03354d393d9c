package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"BundleHub-Chain/internal/web3"
	"BundleHub-Chain/internal/web3/ethereum"
)

// Config selects the chain definitions file and the default chain name.
type Config struct {
	ChainConfig  string
	DefaultChain string
	RPCURL       string
}

// Registry manages a set of chain backends keyed by human readable names.
type Registry struct {
	defaultChain string
	backends     map[string]web3.Backend
}

// NewRegistry loads chain definitions and instantiates concrete backends.
func NewRegistry(ctx context.Context, cfg Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	backends := make(map[string]web3.Backend)
	for name, chain := range defs.Chains {
		chainType := strings.ToLower(strings.TrimSpace(chain.Type))
		if chainType == "" {
			chainType = "evm"
		}
		switch chainType {
		case "evm":
			client, err := ethereum.NewClient(ctx, ethereum.Config{
				Name:         name,
				RPCURL:       chain.RPCURL,
				WalletRPCURL: chain.WalletRPCURL,
				Notes:        chain.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
			}
			backends[name] = client
		default:
			return nil, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, chain.Type)
		}
	}

	if len(backends) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		client, err := ethereum.NewClient(ctx, ethereum.Config{RPCURL: cfg.RPCURL})
		if err != nil {
			return nil, err
		}
		backends["default"] = client
		if cfg.DefaultChain == "" {
			cfg.DefaultChain = "default"
		}
	}

	if len(backends) == 0 {
		return nil, errors.New("未配置任何链的 RPC 端点")
	}

	defaultChain := cfg.DefaultChain
	if defaultChain == "" {
		names := make([]string, 0, len(backends))
		for name := range backends {
			names = append(names, name)
		}
		sort.Strings(names)
		defaultChain = names[0]
	}
	if _, ok := backends[defaultChain]; !ok {
		return nil, fmt.Errorf("默认链 %s 未在配置中找到", defaultChain)
	}

	return &Registry{defaultChain: defaultChain, backends: backends}, nil
}

// DefaultBackend returns the backend configured as default chain.
func (r *Registry) DefaultBackend() (web3.Backend, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	backend, ok := r.backends[r.defaultChain]
	if !ok {
		return nil, fmt.Errorf("默认链 %s 未在注册表中", r.defaultChain)
	}
	return backend, nil
}

// Backend returns the chain backend identified by name.
func (r *Registry) Backend(name string) (web3.Backend, bool) {
	if r == nil {
		return nil, false
	}
	backend, ok := r.backends[name]
	return backend, ok
}

// Close releases all backends managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, backend := range r.backends {
		if backend != nil {
			backend.Close()
		}
		delete(r.backends, name)
	}
}

// Chains returns the list of registered chain names.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
