package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PaperPayloadKey returns the cache key for a paper's full payload (with answer keys).
func (r *CacheKeyStruct) PaperPayloadKey(paperID string) string {
	return fmt.Sprintf("paper:%s:payload", paperID)
}

var CacheKey = NewCacheKeyStruct()
