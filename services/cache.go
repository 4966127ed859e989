package services

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a keyed TTL cache shared by the engines. *gocache.Cache satisfies it.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
}

// NewCache creates the in-process cache injected into the engines.
func NewCache() *gocache.Cache {
	return gocache.New(5*time.Minute, 10*time.Minute)
}
