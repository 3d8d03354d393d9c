package web3

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainDefinitions is the parsed form of configs/chains.yaml: every chain
// the orchestrator may submit investment plans to, keyed by display name.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition is one chain entry. RPCURL serves reads and sequential
// submission; WalletRPCURL, when set, names a wallet_sendCalls capable
// endpoint and is the sole source of the atomic batch capability.
type ChainDefinition struct {
	Type         string `yaml:"type"`
	RPCURL       string `yaml:"rpc_url"`
	WalletRPCURL string `yaml:"wallet_rpc_url"`
	Description  string `yaml:"description"`
}

// Definition returns the named chain entry.
func (d ChainDefinitions) Definition(name string) (ChainDefinition, bool) {
	def, ok := d.Chains[name]
	return def, ok
}

// LoadChainDefinitions reads and parses the chain definition file. An empty
// path yields an empty definition set, leaving endpoint selection to the
// root config's fallback RPC URL.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	for name, chain := range defs.Chains {
		if strings.TrimSpace(chain.RPCURL) == "" {
			return ChainDefinitions{}, fmt.Errorf("链 %s 缺少 rpc_url", name)
		}
	}
	return defs, nil
}
