package cache_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/anz-io/smart-order-router/quoter/cache"
	"github.com/zeebo/assert"
)

type price struct {
	wei *big.Int
}

func TestKeysAreChainScoped(t *testing.T) {
	mainnet := cache.New[string](1, time.Minute)
	bnb := cache.New[string](56, time.Minute)

	assert.Equal(t, mainnet.Key("0xABC"), "1-0xabc")
	assert.Equal(t, bnb.Key("pool", "0xABC"), "56-pool-0xabc")

	mainnet.Set("USDC", "0xABC")
	v, ok := mainnet.Get("0xabc")
	assert.True(t, ok)
	assert.Equal(t, v, "USDC")

	_, ok = bnb.Get("0xabc")
	assert.False(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	c := cache.New[int](1, 20*time.Millisecond)
	c.Set(7, "k")

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, v, 7)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCloneOnRead(t *testing.T) {
	clone := func(p *price) *price { return &price{wei: new(big.Int).Set(p.wei)} }
	c := cache.New[*price](1, time.Minute, cache.WithCloneOnRead(clone))
	c.Set(&price{wei: big.NewInt(100)}, "gas")

	first, ok := c.Get("gas")
	assert.True(t, ok)
	first.wei.SetInt64(1)

	second, _ := c.Get("gas")
	assert.Equal(t, second.wei.Int64(), int64(100))
}

func TestSharedByReferenceWithoutClone(t *testing.T) {
	c := cache.New[*price](1, time.Minute)
	c.Set(&price{wei: big.NewInt(100)}, "pool")

	first, _ := c.Get("pool")
	first.wei.SetInt64(1)

	second, _ := c.Get("pool")
	assert.Equal(t, second.wei.Int64(), int64(1))
	assert.Equal(t, c.Len(), 1)

	c.Delete("pool")
	_, ok := c.Get("pool")
	assert.False(t, ok)
}
