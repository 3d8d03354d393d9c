package bundle

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// TokenDefinition is one configured token entry: a display symbol and an
// optional pinned decimal precision that skips the on-chain read.
type TokenDefinition struct {
	Symbol   string `yaml:"symbol"`
	Decimals *uint8 `yaml:"decimals"`
}

// TokenDefinitions models the structure of configs/tokens.yaml. Known token
// symbols are injected through configuration rather than baked into the
// orchestrator.
type TokenDefinitions struct {
	Tokens map[string]TokenDefinition `yaml:"tokens"`
}

// SymbolTable is the resolved lookup table keyed by token address.
type SymbolTable map[common.Address]TokenDefinition

// LoadTokenDefinitions parses the YAML file containing token metadata.
func LoadTokenDefinitions(path string) (SymbolTable, error) {
	if strings.TrimSpace(path) == "" {
		return SymbolTable{}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取代币配置失败: %w", err)
	}
	var defs TokenDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return nil, fmt.Errorf("解析代币配置失败: %w", err)
	}
	table := make(SymbolTable, len(defs.Tokens))
	for rawAddress, def := range defs.Tokens {
		if !common.IsHexAddress(rawAddress) {
			return nil, fmt.Errorf("代币地址 %s 不合法", rawAddress)
		}
		table[common.HexToAddress(rawAddress)] = def
	}
	return table, nil
}
