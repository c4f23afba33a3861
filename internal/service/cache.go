// Пакет service — бизнес-логика Filebox.
// cache.go — LRU-кэш ownership-scoped записей файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filebox/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных.",
	})
)

// MetadataCache — LRU-кэш записей файлов с автоматическим TTL.
// Ключ включает owner id: кэш никогда не отдаёт запись другому владельцу.
type MetadataCache struct {
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewMetadataCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewMetadataCache(maxSize int, ttl time.Duration) *MetadataCache {
	cache := expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl)
	return &MetadataCache{cache: cache}
}

// cacheKey строит ключ кэша из (owner, file id).
func cacheKey(ownerID, fileID string) string {
	return ownerID + "/" + fileID
}

// Get возвращает запись из кэша по (owner, file id).
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *MetadataCache) Get(ownerID, fileID string) (*model.FileRecord, bool) {
	val, ok := c.cache.Get(cacheKey(ownerID, fileID))
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *MetadataCache) Set(record *model.FileRecord) {
	c.cache.Add(cacheKey(record.OwnerID, record.ID), record)
}

// Delete удаляет запись из кэша (инвалидация при удалении файла).
func (c *MetadataCache) Delete(ownerID, fileID string) {
	c.cache.Remove(cacheKey(ownerID, fileID))
}
