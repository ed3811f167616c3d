package models

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// CacheLayer identifies where a response was served from.
type CacheLayer string

const (
	CacheLayerL2   CacheLayer = "l2"
	CacheLayerL1   CacheLayer = "l1"
	CacheLayerMiss CacheLayer = "miss"
)
