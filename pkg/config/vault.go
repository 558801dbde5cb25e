package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VaultFile is the YAML definition of a vault, its asset, roles and the
// strategies it starts with.
type VaultFile struct {
	Vault struct {
		Address                 string  `yaml:"address"`
		Name                    string  `yaml:"name"`
		Symbol                  string  `yaml:"symbol"`
		Treasury                string  `yaml:"treasury"`
		TVLCap                  string  `yaml:"tvl_cap"`
		WithdrawMaxLossBPS      *uint64 `yaml:"withdraw_max_loss_bps"`
		LockedProfitDegradation string  `yaml:"locked_profit_degradation"`
	} `yaml:"vault"`
	Asset struct {
		ID       string            `yaml:"id"`
		Name     string            `yaml:"name"`
		Symbol   string            `yaml:"symbol"`
		Decimals uint8             `yaml:"decimals"`
		Balances map[string]string `yaml:"balances"`
	} `yaml:"asset"`
	Roles      []RoleEntry     `yaml:"roles"`
	Strategies []StrategyEntry `yaml:"strategies"`
	// Tokens are foreign tokens held by the vault, recoverable through rescue
	Tokens []TokenEntry `yaml:"tokens"`
}

type RoleEntry struct {
	Address string `yaml:"address"`
	Role    string `yaml:"role"`
}

type StrategyEntry struct {
	Address  string `yaml:"address"`
	FeeBPS   uint64 `yaml:"fee_bps"`
	AllocBPS uint64 `yaml:"alloc_bps"`
}

type TokenEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Symbol       string `yaml:"symbol"`
	Decimals     uint8  `yaml:"decimals"`
	VaultBalance string `yaml:"vault_balance"`
}

// LoadVaultFile reads and checks a vault definition.
func LoadVaultFile(path string) (*VaultFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vault config: %w", err)
	}
	return ParseVaultFile(data)
}

// ParseVaultFile decodes a vault definition.
func ParseVaultFile(data []byte) (*VaultFile, error) {
	vf := &VaultFile{}
	if err := yaml.Unmarshal(data, vf); err != nil {
		return nil, fmt.Errorf("parse vault config: %w", err)
	}

	if vf.Vault.Address == "" {
		return nil, errors.New("vault.address is required")
	}
	if vf.Asset.ID == "" {
		return nil, errors.New("asset.id is required")
	}
	if vf.Vault.Name == "" {
		vf.Vault.Name = "Vault " + vf.Asset.Symbol
	}
	if vf.Vault.Symbol == "" {
		vf.Vault.Symbol = "v" + vf.Asset.Symbol
	}
	if vf.Vault.TVLCap == "" {
		vf.Vault.TVLCap = "unlimited"
	}
	if vf.Asset.Decimals == 0 {
		vf.Asset.Decimals = 6
	}
	for i, tok := range vf.Tokens {
		if tok.ID == "" {
			return nil, fmt.Errorf("tokens[%d].id is required", i)
		}
	}
	return vf, nil
}
