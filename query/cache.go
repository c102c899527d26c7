package query

import (
	"fmt"
)

// CacheStrategy tells how results of a query may be cached
type CacheStrategy int

// Cache strategies
const (
	NoCache CacheStrategy = iota
	LocalCache
	LocalCacheRefresh
	SharedCache
	SharedCacheRefresh
)

var cacheStrategyNames = []string{
	NoCache:            "NO_CACHE",
	LocalCache:         "LOCAL_CACHE",
	LocalCacheRefresh:  "LOCAL_CACHE_REFRESH",
	SharedCache:        "SHARED_CACHE",
	SharedCacheRefresh: "SHARED_CACHE_REFRESH",
}

func (s CacheStrategy) String() string {
	if s < 0 || int(s) >= len(cacheStrategyNames) {
		return fmt.Sprintf("CacheStrategy(%d)", int(s))
	}
	return cacheStrategyNames[s]
}

// IsRefresh is true for strategies that replace the cached entry instead of
// reading it
func (s CacheStrategy) IsRefresh() bool {
	return s == LocalCacheRefresh || s == SharedCacheRefresh
}

// ParseCacheStrategy reads a strategy name. An empty name is NoCache.
func ParseCacheStrategy(name string) (CacheStrategy, error) {
	if name == "" {
		return NoCache, nil
	}
	for i, n := range cacheStrategyNames {
		if n == name {
			return CacheStrategy(i), nil
		}
	}
	return NoCache, fmt.Errorf("unknown cache strategy '%s'", name)
}
