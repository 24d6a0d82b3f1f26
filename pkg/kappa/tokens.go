package kappa

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/kappa-sdk/internal/api"
	"github.com/rovshanmuradov/kappa-sdk/internal/factory"
)

// tokenInfo is what the metadata API knows about where a coin trades.
// Empty fields mean unknown.
type tokenInfo struct {
	FactoryAddress string
	CurveID        string
}

type tokenEntry struct {
	info      tokenInfo
	expiresAt time.Time
}

// tokenCache remembers coin lookups per coin type for factory.DefaultTTL.
type tokenCache struct {
	mu      sync.RWMutex
	entries map[string]tokenEntry
	ttl     time.Duration
	now     func() time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{
		entries: make(map[string]tokenEntry),
		ttl:     factory.DefaultTTL,
		now:     time.Now,
	}
}

func (c *tokenCache) get(coinType string) (tokenInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[coinType]
	if !ok || !c.now().Before(e.expiresAt) {
		return tokenInfo{}, false
	}
	return e.info, true
}

func (c *tokenCache) put(coinType string, info tokenInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[coinType] = tokenEntry{info: info, expiresAt: c.now().Add(c.ttl)}
}

// lookupToken asks the API which factory and curve coinType belongs to.
// Failures yield an empty tokenInfo; a 404 is cached as unknown.
func (s *SDK) lookupToken(ctx context.Context, coinType string) tokenInfo {
	client, _ := s.clients()
	cache := s.tokenCache()
	if info, ok := cache.get(coinType); ok {
		return info
	}

	coin, err := client.GetCoin(ctx, coinType)
	if err != nil {
		if api.IsNotFound(err) {
			cache.put(coinType, tokenInfo{})
		} else {
			s.logger().Warn("Coin lookup failed", zap.String("coin_type", coinType), zap.Error(err))
		}
		return tokenInfo{}
	}

	info := tokenInfo{FactoryAddress: coin.FactoryAddress, CurveID: coin.CurveAddress}
	cache.put(coinType, info)
	return info
}
