// cache.go — LRU-кэш метаданных файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gosharebin/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shb_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shb_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных",
	})
)

// CacheService — LRU-кэш метаданных файлов с автоматическим TTL.
// Кэш in-memory, на экземпляр процесса; инвалидируется при удалении.
type CacheService struct {
	cache *expirable.LRU[string, *model.FileEntry]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.FileEntry](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает FileEntry из кэша по коду.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *CacheService) Get(code string) (*model.FileEntry, bool) {
	val, ok := c.cache.Get(code)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(code string, entry *model.FileEntry) {
	c.cache.Add(code, entry)
}

// Delete удаляет запись из кэша (инвалидация при удалении файла).
func (c *CacheService) Delete(code string) {
	c.cache.Remove(code)
}
