package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/pelletier/go-toml/v2"
)

// FileReader defines the interface for reading files
type FileReader interface {
	// ReadFile reads the file at the given path and returns the contents
	ReadFile(path string) ([]byte, error)
}

// DefaultFileReader implements FileReader using os.ReadFile
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ChainsConfig is the optional chains file
type ChainsConfig struct {
	Chains []ChainOverride `toml:"chains"`
}

// ChainOverride replaces the RPC endpoint of a built-in chain and adds native aliases
type ChainOverride struct {
	ChainID       uint64   `toml:"chain_id"`
	RPCURL        string   `toml:"rpc_url"`
	NativeAliases []string `toml:"native_aliases"`
}

// ChainConfigLoader reads chains files through an injectable FileReader
type ChainConfigLoader struct {
	fileReader FileReader
}

func NewChainConfigLoader(fileReader FileReader) *ChainConfigLoader {
	return &ChainConfigLoader{fileReader: fileReader}
}

func NewDefaultChainConfigLoader() *ChainConfigLoader {
	return NewChainConfigLoader(&DefaultFileReader{})
}

// LoadFromFile parses a chains file
func (l *ChainConfigLoader) LoadFromFile(filePath string) (*ChainsConfig, error) {
	if !strings.HasSuffix(filePath, ".toml") {
		return nil, fmt.Errorf("chains file must be a toml file")
	}
	data, err := l.fileReader.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config file: %w", err)
	}

	var config ChainsConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return &config, nil
}

// Apply writes the overrides into registry; unknown chains are an error
func (l *ChainConfigLoader) Apply(registry *chain.Registry, config *ChainsConfig) error {
	if config == nil {
		return nil
	}
	for _, c := range config.Chains {
		id := chain.ChainID(c.ChainID)
		if c.RPCURL != "" {
			if err := registry.SetEndpoint(id, c.RPCURL); err != nil {
				return err
			}
		}
		if len(c.NativeAliases) > 0 {
			if err := registry.AddNativeAliases(id, c.NativeAliases...); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadRegistry returns the built-in registry with the file's overrides applied.
// An empty path yields the built-in registry.
func (l *ChainConfigLoader) LoadRegistry(filePath string) (*chain.Registry, error) {
	registry := chain.NewRegistry()
	if filePath == "" {
		return registry, nil
	}
	config, err := l.LoadFromFile(filePath)
	if err != nil {
		return nil, err
	}
	if err := l.Apply(registry, config); err != nil {
		return nil, fmt.Errorf("failed to apply chain config: %w", err)
	}
	return registry, nil
}
