package cache

import (
	"stockanalyzer/pkg/error"
)

// CacheError 缓存层错误
type CacheError struct {
	error.BaseError
}

const (
	// ErrCacheTimeout 表示缓存操作超时。
	ErrCacheTimeout error.ErrorCode = "CACHE_TIMEOUT"
	// ErrCacheMiss 表示在缓存中未找到请求的条目。
	ErrCacheMiss error.ErrorCode = "CACHE_MISS"
	// ErrCacheClosed 表示缓存已关闭。
	ErrCacheClosed error.ErrorCode = "CACHE_CLOSED"
	// ErrCacheCorrupted 表示缓存数据已损坏。
	ErrCacheCorrupted error.ErrorCode = "CACHE_CORRUPTED"
)

var (
	ErrCacheMissNotFound  = NewCacheError(ErrCacheMiss, "cache entry not found")
	ErrCacheAlreadyClosed = NewCacheError(ErrCacheClosed, "cache is closed")
)

// NewCacheError 创建缓存错误
func NewCacheError(code error.ErrorCode, message string) *CacheError {
	return &CacheError{
		BaseError: *error.NewError(code, message),
	}
}
