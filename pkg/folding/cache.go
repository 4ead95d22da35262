package folding

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SourceCache remembers fold lists of recently seen source contents.
type SourceCache struct {
	cache *lru.Cache[string, []Fold]
}

// NewSourceCache creates a cache holding up to size fold lists.
func NewSourceCache(size int) (*SourceCache, error) {
	cache, err := lru.New[string, []Fold](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create source cache: %w", err)
	}
	return &SourceCache{cache: cache}, nil
}

// Lookup returns a copy of the cached folds for src.
func (c *SourceCache) Lookup(src []byte) ([]Fold, bool) {
	folds, ok := c.cache.Get(sourceKey(src))
	if !ok {
		return nil, false
	}
	return append([]Fold(nil), folds...), true
}

// Store caches folds as the fold list of src.
func (c *SourceCache) Store(src []byte, folds []Fold) {
	c.cache.Add(sourceKey(src), append([]Fold(nil), folds...))
}

// Len returns the number of cached entries.
func (c *SourceCache) Len() int {
	return c.cache.Len()
}

func sourceKey(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
