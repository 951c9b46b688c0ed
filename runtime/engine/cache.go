package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/novalym/velm-sub008/core/plan"
)

// Cache is the caller-supplied compile cache consulted by Compile. The
// engine never keeps a process-wide cache of its own; whoever owns the cache
// decides its lifetime and sharing.
type Cache interface {
	Get(key string) (*plan.ExecutionPlan, bool)
	Add(key string, p *plan.ExecutionPlan)
}

// LRUCache is a bounded Cache backed by a hashicorp LRU. Safe for use from
// multiple goroutines compiling independent documents.
type LRUCache struct {
	inner *lru.Cache[string, *plan.ExecutionPlan]
}

// NewLRUCache builds a cache holding at most size compiled plans.
func NewLRUCache(size int) (*LRUCache, error) {
	inner, err := lru.New[string, *plan.ExecutionPlan](size)
	if err != nil {
		return nil, fmt.Errorf("compile cache: %w", err)
	}
	return &LRUCache{inner: inner}, nil
}

func (c *LRUCache) Get(key string) (*plan.ExecutionPlan, bool) {
	return c.inner.Get(key)
}

func (c *LRUCache) Add(key string, p *plan.ExecutionPlan) {
	c.inner.Add(key, p)
}

// CacheKey derives the cache key for a document compiled under a given
// external variable layer: sha256 over the text and the canonical encoding
// of the variables.
func CacheKey(text string, external map[string]any) (string, error) {
	envPrint, err := plan.EnvironmentFingerprint(external)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte(envPrint))
	return hex.EncodeToString(h.Sum(nil)), nil
}
