package core

import (
	"helpdesk/internal/cache"
	"helpdesk/internal/models"
)

func NewCache(config models.CacheConfiguration) cache.ICache {
	return cache.NewCache(config)
}
