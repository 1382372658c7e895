package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/ethereum/go-ethereum/common"
	getter "github.com/hashicorp/go-getter"
)

// TokenList is a token list in the Uniswap token-list JSON format
type TokenList struct {
	Name      string      `json:"name"`
	Timestamp string      `json:"timestamp"`
	Tokens    []TokenInfo `json:"tokens"`
}

// TokenInfo is one token-list entry
type TokenInfo struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// ParseTokenList decodes a token list and drops entries with an invalid address
func ParseTokenList(data []byte) (*TokenList, error) {
	var list TokenList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse token list: %w", err)
	}
	valid := list.Tokens[:0]
	for _, t := range list.Tokens {
		if !common.IsHexAddress(t.Address) {
			log.Warn().Str("address", t.Address).Str("symbol", t.Symbol).Msg("Invalid token list address, skipping")
			continue
		}
		valid = append(valid, t)
	}
	list.Tokens = valid
	return &list, nil
}

// LoadTokenList reads a token list from disk
func LoadTokenList(path string) (*TokenList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}
	return ParseTokenList(data)
}

// FetchTokenList downloads the token list at src (a local path or any go-getter URL)
// into dstDir and parses it.
func FetchTokenList(ctx context.Context, src, dstDir string) (*TokenList, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	dst := filepath.Join(dstDir, "tokenlist.json")

	client := getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	log.Info().Str("src", src).Str("dst", dst).Msg("Fetching token list")
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("failed to download token list: %w", err)
	}
	return LoadTokenList(dst)
}

// IndexTokenList builds one read-only TokenListProvider per chain present in the list
func IndexTokenList(list *TokenList) map[chain.ChainID]*TokenListProvider {
	index := make(map[chain.ChainID]*TokenListProvider)
	if list == nil {
		return index
	}
	for _, info := range list.Tokens {
		id := chain.ChainID(info.ChainID)
		if _, ok := index[id]; !ok {
			index[id] = NewTokenListProvider(id, list)
		}
	}
	return index
}
