package pipeline

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"fragsplit/pkg/contract"
)

// ResultCache 以单元内容的 SHA-256 为键缓存编译结果。
// nil *ResultCache 表示禁用缓存。
type ResultCache struct {
	c *lru.Cache[string, contract.CompileResult]
}

// NewResultCache 创建容量为 size 的 LRU；size<=0 返回 nil（禁用）。
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, contract.CompileResult](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{c: c}, nil
}

// Key 计算内容键。
func Key(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (rc *ResultCache) Get(key string) (contract.CompileResult, bool) {
	if rc == nil {
		return contract.CompileResult{}, false
	}
	return rc.c.Get(key)
}

func (rc *ResultCache) Add(key string, res contract.CompileResult) {
	if rc == nil {
		return
	}
	rc.c.Add(key, res)
}

// Len 返回当前条目数。
func (rc *ResultCache) Len() int {
	if rc == nil {
		return 0
	}
	return rc.c.Len()
}
