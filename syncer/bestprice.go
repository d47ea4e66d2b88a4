package syncer

import "sync"

// BestPrice is one origin's advertised top-of-book for a symbol.
type BestPrice struct {
	Symbol  string  `json:"symbol"`
	Origin  string  `json:"origin_engine_id"`
	BestBid *string `json:"best_bid,omitempty"`
	BestAsk *string `json:"best_ask,omitempty"`
}

// BestPriceCache is a last-writer-wins cache keyed by (symbol, origin).
// It serves informational fleet-wide top-of-book queries and is never
// consulted by the matching algorithm.
type BestPriceCache struct {
	mu      sync.RWMutex
	entries map[string]BestPrice
}

func NewBestPriceCache() *BestPriceCache {
	return &BestPriceCache{entries: make(map[string]BestPrice)}
}

func (c *BestPriceCache) Put(p BestPrice) {
	c.mu.Lock()
	c.entries[p.Symbol+"|"+p.Origin] = p
	c.mu.Unlock()
}

// BySymbol returns every origin's last advisory for a symbol.
func (c *BestPriceCache) BySymbol(symbol string) []BestPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []BestPrice
	for _, p := range c.entries {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}
